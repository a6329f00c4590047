// Package mongostore is the MongoDB ledger backend.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"spendguard/internal/core"
	"spendguard/internal/ledger"
)

const (
	transactionsCollection = "transactions"
	limitsCollection       = "category_limits"
)

type txDoc struct {
	ID            string    `bson:"_id"`
	Owner         string    `bson:"owner"`
	Category      string    `bson:"category"`
	AmountCents   int64     `bson:"amountCents"`
	Payee         string    `bson:"payee"`
	Timestamp     time.Time `bson:"timestamp"`
	ExceededLimit bool      `bson:"exceededLimit"`
}

type limitDoc struct {
	Owner     string    `bson:"owner"`
	Category  string    `bson:"category"`
	CapCents  int64     `bson:"capCents"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Store keeps transactions and limits in two collections of one database.
type Store struct {
	client *mongo.Client
	txs    *mongo.Collection
	limits *mongo.Collection
	now    func() time.Time
}

var (
	_ ledger.Store       = (*Store)(nil)
	_ ledger.SpendSummer = (*Store)(nil)
)

// Connect dials uri, checks the connection and ensures indexes exist.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		client: client,
		txs:    db.Collection(transactionsCollection),
		limits: db.Collection(limitsCollection),
		now:    time.Now,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	slog.Info("MongoDB ledger ready", "database", dbName)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.txs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "category", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "payee", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create transaction indexes: %w", err)
	}
	_, err = s.limits.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "category", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create limit index: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return ledger.Unavailable("ping", err)
	}
	return nil
}

func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = core.NewTransactionID()
	}
	doc := txDoc{
		ID:            t.ID,
		Owner:         t.Owner,
		Category:      t.Category,
		AmountCents:   t.Amount.Cents,
		Payee:         t.Payee,
		Timestamp:     t.Timestamp.UTC(),
		ExceededLimit: t.ExceededLimit,
	}
	if _, err := s.txs.InsertOne(ctx, doc); err != nil {
		return ledger.Unavailable("insert transaction", err)
	}
	return nil
}

func (s *Store) FindTransactions(ctx context.Context, filter ledger.TransactionFilter, srt ledger.Sort) ([]core.Transaction, error) {
	opts := options.Find().SetSort(sortDoc(srt))
	if srt.Limit > 0 {
		opts = opts.SetLimit(int64(srt.Limit))
	}
	cursor, err := s.txs.Find(ctx, filterDoc(filter), opts)
	if err != nil {
		return nil, ledger.Unavailable("find transactions", err)
	}
	defer cursor.Close(ctx)

	out := make([]core.Transaction, 0)
	for cursor.Next(ctx) {
		var d txDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, ledger.Unavailable("decode transaction", err)
		}
		out = append(out, d.toCore())
	}
	if err := cursor.Err(); err != nil {
		return nil, ledger.Unavailable("iterate transactions", err)
	}
	return out, nil
}

func (s *Store) SumAmounts(ctx context.Context, filter ledger.TransactionFilter) (core.Money, error) {
	cursor, err := s.txs.Aggregate(ctx, sumPipeline(filter))
	if err != nil {
		return core.Money{}, ledger.Unavailable("sum amounts", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return core.Money{}, ledger.Unavailable("decode sum", err)
	}
	if len(rows) == 0 {
		return core.Money{}, nil
	}
	return core.Money{Cents: rows[0].Total}, nil
}

func (s *Store) FindLimit(ctx context.Context, owner, category string) (core.CategoryLimit, bool, error) {
	var d limitDoc
	err := s.limits.FindOne(ctx, limitKey(owner, category)).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.CategoryLimit{}, false, nil
	}
	if err != nil {
		return core.CategoryLimit{}, false, ledger.Unavailable("find limit", err)
	}
	return d.toCore(), true, nil
}

func (s *Store) ListLimits(ctx context.Context, owner string) ([]core.CategoryLimit, error) {
	cursor, err := s.limits.Find(ctx, bson.D{{Key: "owner", Value: owner}},
		options.Find().SetSort(bson.D{{Key: "category", Value: 1}}))
	if err != nil {
		return nil, ledger.Unavailable("list limits", err)
	}
	defer cursor.Close(ctx)

	var docs []limitDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, ledger.Unavailable("decode limits", err)
	}
	out := make([]core.CategoryLimit, len(docs))
	for i, d := range docs {
		out[i] = d.toCore()
	}
	return out, nil
}

// UpsertLimit updates the single document keyed by (owner, category),
// creating it on first use.
func (s *Store) UpsertLimit(ctx context.Context, owner, category string, cap core.Money) error {
	l := core.CategoryLimit{Owner: owner, Category: strings.TrimSpace(category), Cap: cap}
	if err := l.Validate(); err != nil {
		return err
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "capCents", Value: l.Cap.Cents},
		{Key: "updatedAt", Value: s.now().UTC()},
	}}}
	if _, err := s.limits.UpdateOne(ctx, limitKey(l.Owner, l.Category), update, options.Update().SetUpsert(true)); err != nil {
		return ledger.Unavailable("upsert limit", err)
	}
	return nil
}

func (s *Store) ListLimitOwners(ctx context.Context) ([]string, error) {
	vals, err := s.limits.Distinct(ctx, "owner", bson.D{})
	if err != nil {
		return nil, ledger.Unavailable("list owners", err)
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if o, ok := v.(string); ok {
			out = append(out, o)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d txDoc) toCore() core.Transaction {
	return core.Transaction{
		ID:            d.ID,
		Owner:         d.Owner,
		Category:      d.Category,
		Amount:        core.Money{Cents: d.AmountCents},
		Payee:         d.Payee,
		Timestamp:     d.Timestamp.UTC(),
		ExceededLimit: d.ExceededLimit,
	}
}

func (d limitDoc) toCore() core.CategoryLimit {
	return core.CategoryLimit{
		Owner:     d.Owner,
		Category:  d.Category,
		Cap:       core.Money{Cents: d.CapCents},
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}
