package store

import (
	"context"
	"errors"
	"fmt"
)

// BrokerPatch holds optional updates to the broker settings. It has no
// status fields; those are written only by the connection manager.
type BrokerPatch struct {
	ClientID    *string `json:"client_id,omitempty"`
	Host        *string `json:"host,omitempty"`
	Port        *int    `json:"port,omitempty"`
	Protocol    *string `json:"protocol,omitempty"`
	Username    *string `json:"username,omitempty"`
	Password    *string `json:"password,omitempty"`
	DeviceID    *string `json:"device_id,omitempty"`
	DeviceGroup *string `json:"device_group,omitempty"`
}

// EnsureBroker returns the stored broker record, persisting defaults first
// when none exists.
func (s *Store) EnsureBroker(ctx context.Context, defaults BrokerConfig) (BrokerConfig, error) {
	var out BrokerConfig
	err := s.Update(ctx, func(tx *Tx) error {
		b, err := tx.Broker()
		if err == nil {
			out = b
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		out = defaults
		return tx.Put(KeyBroker, defaults)
	})
	return out, err
}

// SetBrokerStatus writes the connected flag and state text, leaving every
// other field untouched.
func (s *Store) SetBrokerStatus(ctx context.Context, connected bool, state string) error {
	return s.Update(ctx, func(tx *Tx) error {
		b, err := tx.Broker()
		if err != nil {
			return err
		}
		if b.Connected == connected && b.State == state {
			return nil
		}
		b.Connected = connected
		b.State = state
		return tx.Put(KeyBroker, b)
	})
}

// PatchBroker applies p to the stored broker settings, preserving the
// connected and state fields.
func (s *Store) PatchBroker(ctx context.Context, p BrokerPatch) (BrokerConfig, error) {
	if p.Port != nil && (*p.Port < 1 || *p.Port > 65535) {
		return BrokerConfig{}, fmt.Errorf("%w: port must be between 1 and 65535", ErrInvalid)
	}

	var out BrokerConfig
	err := s.Update(ctx, func(tx *Tx) error {
		b, err := tx.Broker()
		if err != nil {
			return err
		}
		applyBrokerPatch(&b, p)
		out = b
		return tx.Put(KeyBroker, b)
	})
	return out, err
}

func applyBrokerPatch(b *BrokerConfig, p BrokerPatch) {
	if p.ClientID != nil {
		b.ClientID = *p.ClientID
	}
	if p.Host != nil {
		b.Host = *p.Host
	}
	if p.Port != nil {
		b.Port = *p.Port
	}
	if p.Protocol != nil {
		b.Protocol = *p.Protocol
	}
	if p.Username != nil {
		b.Username = *p.Username
	}
	if p.Password != nil {
		b.Password = *p.Password
	}
	if p.DeviceID != nil {
		b.DeviceID = *p.DeviceID
	}
	if p.DeviceGroup != nil {
		b.DeviceGroup = *p.DeviceGroup
	}
}
