package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/renameio/v2"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	storeFileMode  = 0o600
	storeDirMode   = 0o700
	storeConfigDir = ".autoseed"
)

// fileSchema is a versioned TOML file holding one list of records.
type fileSchema[R any] interface {
	schemaVersion() *int
	records() *[]R
}

// document guards one TOML file. Instances opened on the same path share a
// lock, so concurrent repositories never lose each other's writes.
type document[F any, R any, PF interface {
	*F
	fileSchema[R]
}] struct {
	path    string
	label   string
	current int
	idOf    func(R) string
	mu      *sync.RWMutex
}

var pathLocks sync.Map

func openDocument[F any, R any, PF interface {
	*F
	fileSchema[R]
}](path, label string, current int, idOf func(R) string) *document[F, R, PF] {
	mu, _ := pathLocks.LoadOrStore(path, &sync.RWMutex{})
	return &document[F, R, PF]{
		path:    path,
		label:   label,
		current: current,
		idOf:    idOf,
		mu:      mu.(*sync.RWMutex),
	}
}

func (d *document[F, R, PF]) all(ctx context.Context) ([]R, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	file, err := d.load()
	if err != nil {
		return nil, err
	}
	return *PF(&file).records(), nil
}

func (d *document[F, R, PF]) find(ctx context.Context, id string) (R, bool, error) {
	var zero R

	records, err := d.all(ctx)
	if err != nil {
		return zero, false, err
	}
	for _, record := range records {
		if d.idOf(record) == id {
			return record, true, nil
		}
	}
	return zero, false, nil
}

// upsert replaces the record with the same id in place or appends it.
func (d *document[F, R, PF]) upsert(ctx context.Context, record R) error {
	id := d.idOf(record)
	return d.modify(ctx, func(records []R) ([]R, error) {
		if idx := d.index(records, id); idx >= 0 {
			records[idx] = record
			return records, nil
		}
		return append(records, record), nil
	})
}

func (d *document[F, R, PF]) remove(ctx context.Context, id string, notFound error) error {
	return d.modify(ctx, func(records []R) ([]R, error) {
		idx := d.index(records, id)
		if idx < 0 {
			return nil, notFound
		}
		return slices.Delete(records, idx, idx+1), nil
	})
}

func (d *document[F, R, PF]) modify(ctx context.Context, fn func([]R) ([]R, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	file, err := d.load()
	if err != nil {
		return err
	}

	records := PF(&file).records()
	updated, err := fn(*records)
	if err != nil {
		return err
	}
	*records = updated

	if err := ctx.Err(); err != nil {
		return err
	}
	return d.store(file)
}

func (d *document[F, R, PF]) index(records []R, id string) int {
	return slices.IndexFunc(records, func(record R) bool {
		return d.idOf(record) == id
	})
}

// load returns an empty document when the file does not exist yet.
func (d *document[F, R, PF]) load() (F, error) {
	var file F

	data, err := os.ReadFile(d.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return file, fmt.Errorf("read %s file: %w", d.label, err)
	default:
		if err := toml.Unmarshal(data, &file); err != nil {
			return file, fmt.Errorf("decode %s file: %w", d.label, err)
		}
	}

	version := PF(&file).schemaVersion()
	if *version > d.current {
		return file, fmt.Errorf("unsupported %s schema version %d (current %d)", d.label, *version, d.current)
	}
	if *version == 0 {
		*version = d.current
	}

	return file, nil
}

func (d *document[F, R, PF]) store(file F) error {
	if err := os.MkdirAll(filepath.Dir(d.path), storeDirMode); err != nil {
		return fmt.Errorf("create %s directory: %w", d.label, err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode %s file: %w", d.label, err)
	}
	if err := renameio.WriteFile(d.path, data, storeFileMode); err != nil {
		return fmt.Errorf("replace %s file: %w", d.label, err)
	}

	return nil
}

// resolvePath reads key from cfg and falls back to ~/.autoseed/<fileName>.
func resolvePath(cfg *viper.Viper, key, fileName string) (string, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	path := cfg.GetString(key)
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(homeDir, storeConfigDir, fileName)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", key, err)
	}

	return filepath.Clean(absPath), nil
}
