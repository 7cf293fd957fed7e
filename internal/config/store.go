package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"
)

const keyringService = "odoo-mcp"

// Store is the sole writer of the configuration directory. Each
// document kind has a fixed filename; saves are serialized per-kind so
// concurrent writers for the same kind cannot interleave, while
// different kinds proceed in parallel (§4.1).
type Store struct {
	dir    string
	logger *slog.Logger

	locksMu sync.Mutex
	locks   map[Kind]*sync.Mutex

	useKeyring bool
}

// NewStore creates a Store rooted at dir, creating it if necessary.
func NewStore(dir string, logger *slog.Logger, useKeyring bool) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("config: create config dir: %w", err)
	}
	return &Store{
		dir:        dir,
		logger:     logger,
		locks:      make(map[Kind]*sync.Mutex),
		useKeyring: useKeyring,
	}, nil
}

func (s *Store) lockFor(kind Kind) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[kind]
	if !ok {
		l = &sync.Mutex{}
		s.locks[kind] = l
	}
	return l
}

func (s *Store) path(kind Kind) string {
	return filepath.Join(s.dir, kind.filename())
}

// LoadRaw reads and parses the document for kind, seeding it with
// embedded defaults on first read, validates it, and returns the raw
// bytes actually on disk (post-seed).
func (s *Store) LoadRaw(kind Kind) (json.RawMessage, error) {
	l := s.lockFor(kind)
	l.Lock()
	defer l.Unlock()

	path := s.path(kind)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		seed, marshalErr := s.seedFor(kind)
		if marshalErr != nil {
			return nil, marshalErr
		}
		if writeErr := writeFileSync(path, seed); writeErr != nil {
			return nil, &InvalidError{Kind: kind, Reason: writeErr.Error()}
		}
		data = seed
	} else if err != nil {
		return nil, &InvalidError{Kind: kind, Reason: err.Error()}
	}

	if err := s.validateBytes(kind, data); err != nil {
		return nil, &InvalidError{Kind: kind, Reason: err.Error()}
	}
	return data, nil
}

func (s *Store) seedFor(kind Kind) (json.RawMessage, error) {
	var v interface{}
	switch kind {
	case KindInstances:
		v = seedInstances()
	case KindTools:
		v = seedTools()
	case KindPrompts:
		v = seedPrompts()
	case KindServer:
		v = seedServer()
	default:
		return nil, &InvalidError{Kind: kind, Reason: "unknown document kind"}
	}
	return json.MarshalIndent(v, "", "  ")
}

func (s *Store) validateBytes(kind Kind, data []byte) error {
	switch kind {
	case KindInstances:
		var doc InstancesDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		if s.useKeyring {
			for i := range doc.Instances {
				resolveFromKeyring(&doc.Instances[i])
			}
		}
		return validateInstances(&doc)
	case KindTools:
		var doc ToolsDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		return validateTools(&doc)
	case KindPrompts:
		var doc PromptsDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		return validatePrompts(&doc)
	case KindServer:
		var doc ServerMetadata
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		return validateServer(&doc)
	default:
		return fmt.Errorf("unknown document kind %q", kind)
	}
}

// LoadInstances is a typed convenience wrapper around LoadRaw.
func (s *Store) LoadInstances() (*InstancesDocument, error) {
	data, err := s.LoadRaw(KindInstances)
	if err != nil {
		return nil, err
	}
	var doc InstancesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &InvalidError{Kind: KindInstances, Reason: err.Error()}
	}
	if s.useKeyring {
		for i := range doc.Instances {
			resolveFromKeyring(&doc.Instances[i])
		}
	}
	_ = validateInstances(&doc) // already validated by LoadRaw; normalizes URL in place
	return &doc, nil
}

// LoadTools is a typed convenience wrapper around LoadRaw.
func (s *Store) LoadTools() (*ToolsDocument, error) {
	data, err := s.LoadRaw(KindTools)
	if err != nil {
		return nil, err
	}
	var doc ToolsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &InvalidError{Kind: KindTools, Reason: err.Error()}
	}
	return &doc, nil
}

// LoadPrompts is a typed convenience wrapper around LoadRaw.
func (s *Store) LoadPrompts() (*PromptsDocument, error) {
	data, err := s.LoadRaw(KindPrompts)
	if err != nil {
		return nil, err
	}
	var doc PromptsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &InvalidError{Kind: KindPrompts, Reason: err.Error()}
	}
	return &doc, nil
}

// LoadServer is a typed convenience wrapper around LoadRaw.
func (s *Store) LoadServer() (*ServerMetadata, error) {
	data, err := s.LoadRaw(KindServer)
	if err != nil {
		return nil, err
	}
	var doc ServerMetadata
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &InvalidError{Kind: KindServer, Reason: err.Error()}
	}
	return &doc, nil
}

// Save validates document, writes a timestamped backup of the prior
// file (if any), writes the new content, and fsyncs. On any failure
// after the backup step it restores from that backup and returns a
// *RolledBackError. A successful Save returns only once the file on
// disk is the new content and the prior content is retrievable from
// the freshest backup (§4.1's invariant).
func (s *Store) Save(kind Kind, document interface{}) (rolledBack bool, err error) {
	l := s.lockFor(kind)
	l.Lock()
	defer l.Unlock()

	if instances, ok := document.(*InstancesDocument); ok {
		if verr := validateInstances(instances); verr != nil {
			return false, &InvalidError{Kind: kind, Reason: verr.Error()}
		}
		if s.useKeyring {
			for i := range instances.Instances {
				storeToKeyring(&instances.Instances[i], s.logger)
			}
		}
	}
	if err := s.validateDocument(kind, document); err != nil {
		return false, &InvalidError{Kind: kind, Reason: err.Error()}
	}

	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return false, &InvalidError{Kind: kind, Reason: err.Error()}
	}

	path := s.path(kind)
	var backupPath string
	if prior, err := os.ReadFile(path); err == nil {
		backupPath = fmt.Sprintf("%s.bak.%d-%s", path, time.Now().UnixNano(), uuid.NewString()[:8])
		if err := writeFileSync(backupPath, prior); err != nil {
			return false, &InvalidError{Kind: kind, Reason: fmt.Sprintf("backup failed: %v", err)}
		}
	}

	if err := writeFileSync(path, data); err != nil {
		if backupPath != "" {
			if restoreErr := restoreBackup(backupPath, path); restoreErr != nil {
				s.logger.Error("config save rollback failed", "kind", kind, "error", restoreErr)
			}
		}
		return true, &RolledBackError{Kind: kind, Cause: err}
	}

	return false, nil
}

func (s *Store) validateDocument(kind Kind, document interface{}) error {
	switch kind {
	case KindInstances:
		doc, ok := document.(*InstancesDocument)
		if !ok {
			return fmt.Errorf("expected *InstancesDocument")
		}
		return validateInstances(doc)
	case KindTools:
		doc, ok := document.(*ToolsDocument)
		if !ok {
			return fmt.Errorf("expected *ToolsDocument")
		}
		return validateTools(doc)
	case KindPrompts:
		doc, ok := document.(*PromptsDocument)
		if !ok {
			return fmt.Errorf("expected *PromptsDocument")
		}
		return validatePrompts(doc)
	case KindServer:
		doc, ok := document.(*ServerMetadata)
		if !ok {
			return fmt.Errorf("expected *ServerMetadata")
		}
		return validateServer(doc)
	default:
		return fmt.Errorf("unknown document kind %q", kind)
	}
}

// ValidateRawTools parses and validates raw JSON as a tools document
// without persisting it. ConfigHttpApi does not call it; its POST
// handler validates through Save.
func ValidateRawTools(data []byte) (*ToolsDocument, error) {
	var doc ToolsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if err := validateTools(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func restoreBackup(backupPath, targetPath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return err
	}
	return writeFileSync(targetPath, data)
}

// resolveFromKeyring fills an empty APIKey/Password from the OS keyring
// entries named by KeyringRef (<ref>.apiKey, <ref>.password). Falls
// back silently (leaving the field as-is) when the backend is
// unavailable; callers that require the resolved secret will then fail
// downstream with a clear auth error instead of a confusing keyring one.
func resolveFromKeyring(inst *InstanceDescriptor) {
	if inst.KeyringRef == "" {
		return
	}
	if inst.APIKey == "" {
		if v, err := keyring.Get(keyringService, inst.KeyringRef+".apiKey"); err == nil {
			inst.APIKey = v
		}
	}
	if inst.Password == "" {
		if v, err := keyring.Get(keyringService, inst.KeyringRef+".password"); err == nil {
			inst.Password = v
		}
	}
}

// storeToKeyring moves plaintext APIKey/Password into the OS keyring
// and replaces them with a KeyringRef indirection before the document
// is written to disk. If the keyring backend is unavailable (common in
// containers/CI) it logs a warning and leaves the plaintext in place.
func storeToKeyring(inst *InstanceDescriptor, logger *slog.Logger) {
	if inst.APIKey == "" && inst.Password == "" {
		return
	}
	ref := inst.KeyringRef
	if ref == "" {
		ref = inst.Name
	}
	stored := true
	if inst.APIKey != "" {
		if err := keyring.Set(keyringService, ref+".apiKey", inst.APIKey); err != nil {
			stored = false
		}
	}
	if inst.Password != "" {
		if err := keyring.Set(keyringService, ref+".password", inst.Password); err != nil {
			stored = false
		}
	}
	if !stored {
		logger.Warn("os keyring unavailable, storing instance credentials in plaintext", "instance", inst.Name)
		return
	}
	inst.KeyringRef = ref
	inst.APIKey = ""
	inst.Password = ""
}
