// Package config loads and hot-reloads the coordinator's TOML
// configuration, adapted from cmd/berith/config.go's loadConfig/dumpConfig
// pair: the same toml.Config with identity field-name mapping (so TOML keys
// match Go struct field names verbatim) and the same dumpconfig-style
// marshal-back.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
	"time"
	"unicode"

	"github.com/naoina/toml"
	"github.com/rjeczalik/notify"

	"github.com/ironforge-pool/poolcoordinator/internal/log"
)

// tomlSettings mirrors cmd/berith/config.go's identity field-name mapping:
// a TOML key must match the Go struct field name exactly, and an unknown
// key is a hard error rather than silently ignored.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// Webhooks carries the outbound notification endpoints; all are optional,
// and any of them may change on a hot reload.
type Webhooks struct {
	PoolConnected      string `toml:",omitempty"`
	PoolDisconnected   string `toml:",omitempty"`
	PoolSubmittedBlock string `toml:",omitempty"`
	PoolStatus         string `toml:",omitempty"`
}

// Config is the coordinator's recognized configuration, spec.md §6 plus
// the ambient additions SPEC_FULL.md §2 calls for.
type Config struct {
	// PoolName identifies this pool in status output and webhook payloads.
	PoolName string

	// PoolDifficulty sets the immutable PoolTarget (spec.md invariant: a
	// reload that changes this is rejected, never applied).
	PoolDifficulty uint64

	// PoolStatusNotificationInterval, in seconds; <= 0 disables the status
	// timer. Mutable across reloads.
	PoolStatusNotificationInterval int

	// UpstreamAddr is the full node RPC endpoint the coordinator connects
	// to. Immutable: changing the upstream mid-process is out of scope.
	UpstreamAddr string

	// ListenAddr is the framed server's miner-facing listen address.
	ListenAddr string

	// StatusListenAddr, if set, serves internal/statusapi's JSON endpoint.
	StatusListenAddr string `toml:",omitempty"`

	// Webhooks carries the mutable notification endpoints.
	Webhooks Webhooks `toml:",omitempty"`

	// ArchiveConnectionString, if set, enables internal/archive's Azure
	// Blob Storage mirror of accepted block submissions.
	ArchiveConnectionString string `toml:",omitempty"`

	// AuditDBPath, if set, enables internal/audit's local append-only
	// leveldb record of block submissions and share credits.
	AuditDBPath string `toml:",omitempty"`

	// InfluxDB, if Addr is set, enables internal/metrics' periodic status
	// export.
	InfluxDB InfluxDBConfig `toml:",omitempty"`
}

// InfluxDBConfig carries internal/metrics' export target.
type InfluxDBConfig struct {
	Addr     string `toml:",omitempty"`
	Database string `toml:",omitempty"`
	Username string `toml:",omitempty"`
	Password string `toml:",omitempty"`
}

func load(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// Load reads and decodes file into a fresh Config.
func Load(file string) (Config, error) {
	var cfg Config
	if err := load(file, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: loading %s: %w", file, err)
	}
	return cfg, nil
}

// Dump renders cfg back to TOML, mirroring cmd/berith's dumpconfig command.
func Dump(w io.Writer, cfg Config) error {
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// Watcher hot-reloads the mutable subset of Config (status interval,
// webhook endpoints) from file whenever it changes on disk, using
// rjeczalik/notify the way the teacher's pack declares it for filesystem
// watching. PoolDifficulty is immutable per spec.md's invariant: a reload
// that would change it is rejected and logged, never applied.
type Watcher struct {
	mu       sync.Mutex
	file     string
	cur      Config
	log      *log.Logger
	onChange func(Config)

	events chan notify.EventInfo
	done   chan struct{}
}

// NewWatcher starts watching file for changes, seeded with the
// already-loaded initial config. onChange, if non-nil, is invoked with the
// newly accepted configuration every time a reload actually takes effect
// (i.e. not on a rejected or failed reload), so callers can push the
// mutable fields (status interval, webhook endpoints) into already-running
// components instead of only updating what Current reports.
func NewWatcher(file string, initial Config, onChange func(Config)) (*Watcher, error) {
	events := make(chan notify.EventInfo, 8)
	if err := notify.Watch(file, events, notify.Write); err != nil {
		return nil, fmt.Errorf("config: watching %s: %w", file, err)
	}
	w := &Watcher{
		file:     file,
		cur:      initial,
		log:      log.New("component", "config-watcher"),
		onChange: onChange,
		events:   events,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Current returns the most recently accepted configuration.
func (w *Watcher) Current() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur
}

// Close stops watching.
func (w *Watcher) Close() {
	notify.Stop(w.events)
	close(w.done)
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case <-w.events:
			// debounce: editors often emit several write events per save.
			time.Sleep(50 * time.Millisecond)
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	next, err := Load(w.file)
	if err != nil {
		w.log.Warn("config reload failed, keeping previous config", "err", err)
		return
	}

	w.mu.Lock()
	if next.PoolDifficulty != w.cur.PoolDifficulty {
		w.log.Warn("config reload attempted to change poolDifficulty, rejecting entire reload",
			"current", w.cur.PoolDifficulty, "requested", next.PoolDifficulty)
		w.mu.Unlock()
		return
	}
	w.cur = next
	onChange := w.onChange
	w.mu.Unlock()

	w.log.Info("config reloaded", "statusInterval", next.PoolStatusNotificationInterval)
	if onChange != nil {
		onChange(next)
	}
}
