package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/iho/tontiflex/internal/domain"
)

// trailColumns is the persisted form of domain.Trail.
type trailColumns struct {
	actorID   string
	actorRole string
	entered   []byte
}

func trailToColumns(t domain.Trail) (trailColumns, error) {
	entered, err := json.Marshal(t.EnteredAt)
	if err != nil {
		return trailColumns{}, fmt.Errorf("encode trail: %w", err)
	}
	return trailColumns{actorID: t.ActorID, actorRole: string(t.ActorRole), entered: entered}, nil
}

func (c trailColumns) trail() (domain.Trail, error) {
	t := domain.Trail{ActorID: c.actorID, ActorRole: domain.Role(c.actorRole)}
	if len(c.entered) > 0 {
		if err := json.Unmarshal(c.entered, &t.EnteredAt); err != nil {
			return t, fmt.Errorf("decode trail: %w", err)
		}
	}
	return t, nil
}

func optionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
