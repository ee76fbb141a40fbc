package application

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bnema/autoseed-cli/internal/bridge"
	"github.com/bnema/autoseed-cli/internal/domain"
	"github.com/bnema/autoseed-cli/internal/ports"
)

func mockAnyContext() interface{} {
	return mock.Anything
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time {
	return f.now
}

// reverseCodec is a reversible stand-in for the xor codec.
type reverseCodec struct{}

func (reverseCodec) Encode(raw string) string {
	runes := []rune(raw)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return "enc:" + string(runes)
}

func (c reverseCodec) Decode(encoded string) (string, error) {
	if !strings.HasPrefix(encoded, "enc:") {
		return "", errBadBlob
	}
	return strings.TrimPrefix(c.Encode(strings.TrimPrefix(encoded, "enc:")), "enc:"), nil
}

type blobError string

func (e blobError) Error() string { return string(e) }

const errBadBlob = blobError("bad blob")

type inMemoryAccountRepo struct {
	mu       sync.Mutex
	accounts []domain.Account
}

func (r *inMemoryAccountRepo) GetByID(_ context.Context, id domain.AccountID) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.ID == id {
			return account, nil
		}
	}
	return domain.Account{}, domain.ErrAccountNotFound
}

func (r *inMemoryAccountRepo) List(_ context.Context) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Account(nil), r.accounts...), nil
}

func (r *inMemoryAccountRepo) Save(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.accounts {
		if r.accounts[i].ID == account.ID {
			r.accounts[i] = account
			return nil
		}
	}
	r.accounts = append(r.accounts, account)
	return nil
}

func (r *inMemoryAccountRepo) Delete(_ context.Context, id domain.AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.accounts {
		if r.accounts[i].ID == id {
			r.accounts = append(r.accounts[:i], r.accounts[i+1:]...)
			return nil
		}
	}
	return domain.ErrAccountNotFound
}

type inMemoryCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[domain.CampaignID]domain.Campaign
}

func (r *inMemoryCampaignRepo) GetByID(_ context.Context, id domain.CampaignID) (domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	campaign, ok := r.campaigns[id]
	if !ok {
		return domain.Campaign{}, domain.ErrCampaignNotFound
	}
	return campaign, nil
}

func (r *inMemoryCampaignRepo) List(_ context.Context) ([]domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]domain.Campaign, 0, len(r.campaigns))
	for _, campaign := range r.campaigns {
		result = append(result, campaign)
	}
	return result, nil
}

func (r *inMemoryCampaignRepo) Save(_ context.Context, campaign domain.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.campaigns == nil {
		r.campaigns = map[domain.CampaignID]domain.Campaign{}
	}
	r.campaigns[campaign.ID] = campaign
	return nil
}

func (r *inMemoryCampaignRepo) Delete(_ context.Context, id domain.CampaignID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[id]; !ok {
		return domain.ErrCampaignNotFound
	}
	delete(r.campaigns, id)
	return nil
}

type inMemorySecretStore struct {
	mu      sync.Mutex
	secrets map[string]string
}

func (s *inMemorySecretStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.secrets[key]
	if !ok {
		return "", domain.ErrSecretNotFound
	}
	return value, nil
}

func (s *inMemorySecretStore) Put(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.secrets == nil {
		s.secrets = map[string]string{}
	}
	s.secrets[key] = value
	return nil
}

func (s *inMemorySecretStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, key)
	return nil
}

type stubGenerator struct {
	texts []string
	err   error
	calls []ports.GenerateRequest
}

func (g *stubGenerator) Generate(_ context.Context, req ports.GenerateRequest) ([]string, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.texts, nil
}

// blockingGenerator holds Generate until release is closed.
type blockingGenerator struct {
	texts   []string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingGenerator(texts ...string) *blockingGenerator {
	return &blockingGenerator{texts: texts, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *blockingGenerator) Generate(ctx context.Context, _ ports.GenerateRequest) ([]string, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return g.texts, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// scriptedAgent answers bridge traffic synchronously.
type scriptedAgent struct {
	client *bridge.Client

	mu       sync.Mutex
	sent     []bridge.Message
	uid      string
	liveness string
	silent   bool
}

func newScriptedAgent() *scriptedAgent {
	agent := &scriptedAgent{}
	agent.client = bridge.NewClient(agent, nil)
	return agent
}

func (a *scriptedAgent) Broadcast(_ context.Context, data []byte) error {
	msg, err := bridge.Decode(data)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.sent = append(a.sent, msg)
	uid, liveness, silent := a.uid, a.liveness, a.silent
	a.mu.Unlock()

	if silent {
		return nil
	}

	switch m := msg.(type) {
	case bridge.CheckIdentity:
		a.client.DeliverMessage(bridge.IdentityReport{UID: uid})
	case bridge.Execute:
		a.client.DeliverMessage(bridge.ActionComplete{})
	case bridge.TestTarget:
		a.client.DeliverMessage(bridge.TargetResult{Found: true})
	case bridge.CheckAlive:
		a.client.DeliverMessage(bridge.AccountStatus{AccountID: m.AccountID, Status: liveness})
	}
	return nil
}

func (a *scriptedAgent) messages() []bridge.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]bridge.Message(nil), a.sent...)
}
