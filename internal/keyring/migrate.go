package keyring

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"connectkit/internal/model"
)

// Storage layout versions. Version 0 predates at-rest encryption: the
// keypair record is plaintext JSON. Version 1 wraps it in the AES-GCM
// envelope.
const currentDBVersion = 1

// quarantineItemKey holds the pre-migration record when a migration has
// to discard it, so the destructive recovery path leaves a trace.
const quarantineItemKey = "keypair.v0.quarantine"

type migration struct {
	from, to int
	run      func(*Keyring) error
}

// migrations is the ordered migration table. Each step moves the store
// from exactly one version to the next; adding a version 2+ step means
// appending here.
var migrations = []migration{
	{from: 0, to: 1, run: (*Keyring).migrateEncryptKeyPair},
}

// Migrate runs all pending storage migrations, bumping the recorded
// version after each completed step.
func (k *Keyring) Migrate() error {
	version, err := k.store.DBVersion()
	if err != nil {
		return fmt.Errorf("failed to read storage version: %w", err)
	}
	for _, m := range migrations {
		if version != m.from {
			continue
		}
		if err := m.run(k); err != nil {
			return fmt.Errorf("storage migration %d->%d failed: %w", m.from, m.to, err)
		}
		if err := k.store.SetDBVersion(m.to); err != nil {
			return fmt.Errorf("failed to record storage version %d: %w", m.to, err)
		}
		version = m.to
		k.log.Info("storage migrated", zap.Int("version", version))
	}
	return nil
}

// migrateEncryptKeyPair moves a plaintext v0 keypair record into the
// encrypted v1 envelope. The plaintext copy is deleted before the
// encrypted copy is written. When the old record cannot be carried over,
// it is quarantined and removed, and a fresh keypair is generated so the
// store never ends up half-migrated.
func (k *Keyring) migrateEncryptKeyPair() error {
	record, ok, err := k.store.KeyPair()
	if err != nil {
		return err
	}
	if !ok {
		// Nothing to migrate; new installs start encrypted.
		return nil
	}

	var kp model.KeyPair
	if err := json.Unmarshal(record, &kp); err != nil || len(kp.PrivateKey) == 0 {
		return k.discardAndRegenerate(record)
	}

	if err := k.store.RemoveKeyPair(); err != nil {
		return err
	}
	if err := k.storeEncrypted(kp); err != nil {
		return k.discardAndRegenerate(record)
	}
	k.log.Info("keypair encrypted in place")
	return nil
}

func (k *Keyring) discardAndRegenerate(old []byte) error {
	if err := k.store.StoreItem(quarantineItemKey, old); err != nil {
		k.log.Warn("failed to quarantine old keypair record", zap.Error(err))
	}
	if err := k.store.RemoveKeyPair(); err != nil {
		return err
	}
	kp, err := generateKeyPair()
	if err != nil {
		return err
	}
	if err := k.storeEncrypted(kp); err != nil {
		return err
	}
	k.log.Warn("unmigratable keypair record quarantined, new keypair generated")
	return nil
}
