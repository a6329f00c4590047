package mongostore

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"spendguard/internal/ledger"
)

// filterDoc translates a ledger filter into a query document. Time bounds
// use $gte/$lte so both ends are inclusive.
func filterDoc(f ledger.TransactionFilter) bson.D {
	doc := bson.D{}
	if f.Owner != "" {
		doc = append(doc, bson.E{Key: "owner", Value: f.Owner})
	}
	if f.Category != "" {
		doc = append(doc, bson.E{Key: "category", Value: f.Category})
	}
	if f.Payee != "" {
		doc = append(doc, bson.E{Key: "payee", Value: f.Payee})
	}
	var ts bson.D
	if !f.From.IsZero() {
		ts = append(ts, bson.E{Key: "$gte", Value: f.From.UTC()})
	}
	if !f.To.IsZero() {
		ts = append(ts, bson.E{Key: "$lte", Value: f.To.UTC()})
	}
	if len(ts) > 0 {
		doc = append(doc, bson.E{Key: "timestamp", Value: ts})
	}
	return doc
}

func sortDoc(s ledger.Sort) bson.D {
	dir := 1
	if s.NewestFirst {
		dir = -1
	}
	return bson.D{{Key: "timestamp", Value: dir}, {Key: "_id", Value: dir}}
}

func sumPipeline(f ledger.TransactionFilter) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: filterDoc(f)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amountCents"}}},
		}}},
	}
}

func limitKey(owner, category string) bson.D {
	return bson.D{{Key: "owner", Value: owner}, {Key: "category", Value: category}}
}
