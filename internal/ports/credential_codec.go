package ports

type CredentialCodec interface {
	Encode(raw string) string
	Decode(encoded string) (string, error)
}
