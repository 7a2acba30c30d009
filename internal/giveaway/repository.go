package giveaway

import (
	"context"
	"encoding/json"
	"errors"

	"giveawaybot/internal/storage"
	logx "giveawaybot/pkg/logx"
)

// Repository is the typed view of the giveaways collection. Reads that fail
// are logged and come back absent; writes report success as a bool.
type Repository struct {
	st  storage.Store
	log logx.Logger
}

func NewRepository(st storage.Store, log logx.Logger) *Repository {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Repository{st: st, log: log}
}

func (r *Repository) Get(ctx context.Context, id string) (Promotion, bool) {
	raw, err := r.st.Get(ctx, storage.Giveaways, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.log.Warn("giveaway read failed", logx.String("id", id), logx.Err(err))
		}
		return Promotion{}, false
	}
	var p Promotion
	if err := json.Unmarshal(raw, &p); err != nil {
		r.log.Warn("giveaway decode failed", logx.String("id", id), logx.Err(err))
		return Promotion{}, false
	}
	p.normalize()
	return p, true
}

func (r *Repository) Put(ctx context.Context, p Promotion) bool {
	p.normalize()
	b, err := json.Marshal(p)
	if err == nil {
		err = r.st.Put(ctx, storage.Giveaways, p.ID, b)
	}
	if err != nil {
		r.log.Error("giveaway write failed", logx.String("id", p.ID), logx.Err(err))
		return false
	}
	return true
}

func (r *Repository) Delete(ctx context.Context, id string) bool {
	if err := r.st.Delete(ctx, storage.Giveaways, id); err != nil {
		r.log.Error("giveaway delete failed", logx.String("id", id), logx.Err(err))
		return false
	}
	return true
}

// All skips records that fail to decode.
func (r *Repository) All(ctx context.Context) map[string]Promotion {
	raw, err := r.st.All(ctx, storage.Giveaways)
	if err != nil {
		r.log.Warn("giveaway scan failed", logx.Err(err))
		return map[string]Promotion{}
	}
	out := make(map[string]Promotion, len(raw))
	for id, doc := range raw {
		var p Promotion
		if err := json.Unmarshal(doc, &p); err != nil {
			r.log.Warn("giveaway decode failed", logx.String("id", id), logx.Err(err))
			continue
		}
		p.normalize()
		out[id] = p
	}
	return out
}
