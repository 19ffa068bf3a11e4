package identity

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// Store persists the per-device identity state: display names keyed by
// user id, plus the generated anonymous user id for this device. Writes
// are fire-and-forget from the caller's point of view; pebble gives
// per-key atomicity.
type Store struct {
	db  *pebble.DB
	log *zap.Logger
}

const (
	namePrefix    = "identity:name:"
	deviceUserKey = "identity:device:user_id"
)

// Open opens (or creates) the local key-value store at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		log.Error("identity_store_open_failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("opening identity store: %w", err)
	}
	log.Info("identity_store_opened", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetName returns the stored display name for userID, if any.
func (s *Store) GetName(userID string) (string, bool, error) {
	return s.get(namePrefix + userID)
}

// SetName stores the display name for userID, overwriting any prior value.
func (s *Store) SetName(userID, name string) error {
	key := namePrefix + userID
	if err := s.db.Set([]byte(key), []byte(name), pebble.Sync); err != nil {
		s.log.Error("identity_name_write_failed", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("persisting display name: %w", err)
	}
	return nil
}

// EnsureName returns the stored display name for userID, synthesizing and
// persisting a default on first sight so later lookups are stable.
func (s *Store) EnsureName(userID string) (string, error) {
	name, ok, err := s.GetName(userID)
	if err != nil {
		return "", err
	}
	if ok {
		return name, nil
	}
	name = defaultName()
	if err := s.SetName(userID, name); err != nil {
		return "", err
	}
	s.log.Info("identity_name_synthesized", zap.String("user_id", userID), zap.String("name", name))
	return name, nil
}

// DeviceUserID returns the anonymous user id previously generated on this
// device, if any.
func (s *Store) DeviceUserID() (string, bool, error) {
	return s.get(deviceUserKey)
}

// SetDeviceUserID records the anonymous user id for this device.
func (s *Store) SetDeviceUserID(id string) error {
	if err := s.db.Set([]byte(deviceUserKey), []byte(id), pebble.Sync); err != nil {
		return fmt.Errorf("persisting device user id: %w", err)
	}
	return nil
}

func (s *Store) get(key string) (string, bool, error) {
	val, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	out := string(val)
	if err := closer.Close(); err != nil {
		return "", false, err
	}
	return out, true, nil
}

func defaultName() string {
	return fmt.Sprintf("Guest-%04d", rand.Intn(10000))
}
