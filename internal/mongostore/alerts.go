package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"spendguard/internal/core"
	"spendguard/internal/ledger"
)

const alertsCollection = "limit_alerts"

type alertDoc struct {
	Owner          string    `bson:"owner"`
	Category       string    `bson:"category"`
	Payee          string    `bson:"payee"`
	Outcome        string    `bson:"outcome"`
	AmountCents    int64     `bson:"amountCents"`
	CapCents       int64     `bson:"capCents"`
	RemainingCents int64     `bson:"remainingCents"`
	ExceedCents    int64     `bson:"exceedCents"`
	OccurredAt     time.Time `bson:"occurredAt"`
}

var _ ledger.AlertRecorder = (*Store)(nil)

func (s *Store) alerts() *mongo.Collection {
	return s.txs.Database().Collection(alertsCollection)
}

func (s *Store) RecordAlert(ctx context.Context, a ledger.AlertRecord) error {
	_, err := s.alerts().InsertOne(ctx, alertDoc{
		Owner:          a.Owner,
		Category:       a.Category,
		Payee:          a.Payee,
		Outcome:        a.Outcome,
		AmountCents:    a.Amount.Cents,
		CapCents:       a.Cap.Cents,
		RemainingCents: a.Remaining.Cents,
		ExceedCents:    a.Exceed.Cents,
		OccurredAt:     a.OccurredAt.UTC(),
	})
	if err != nil {
		return ledger.Unavailable("record alert", err)
	}
	return nil
}

// ListAlerts returns the most recent alerts of owner, newest first.
func (s *Store) ListAlerts(ctx context.Context, owner string, limit int) ([]ledger.AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "occurredAt", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.alerts().Find(ctx, bson.D{{Key: "owner", Value: owner}}, opts)
	if err != nil {
		return nil, ledger.Unavailable("list alerts", err)
	}
	var docs []alertDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, ledger.Unavailable("decode alerts", err)
	}

	out := make([]ledger.AlertRecord, len(docs))
	for i, d := range docs {
		out[i] = ledger.AlertRecord{
			Owner:      d.Owner,
			Category:   d.Category,
			Payee:      d.Payee,
			Outcome:    d.Outcome,
			Amount:     core.Money{Cents: d.AmountCents},
			Cap:        core.Money{Cents: d.CapCents},
			Remaining:  core.Money{Cents: d.RemainingCents},
			Exceed:     core.Money{Cents: d.ExceedCents},
			OccurredAt: d.OccurredAt.UTC(),
		}
	}
	return out, nil
}
