package ledger

import (
	"sort"
	"time"
)

type bucketKey struct {
	start    time.Time
	currency string
}

// accumulator folds ledger rows into an Aggregate.
type accumulator struct {
	bucket     Bucket
	agg        Aggregate
	currencies map[string]*CurrencyTotal
	buckets    map[bucketKey]*BucketTotal
}

func newAccumulator(bucket Bucket) *accumulator {
	return &accumulator{
		bucket:     bucket,
		currencies: make(map[string]*CurrencyTotal),
		buckets:    make(map[bucketKey]*BucketTotal),
	}
}

func (a *accumulator) add(currency string, amount int64, occurredAt time.Time) {
	a.agg.Net += amount
	a.agg.Count++

	ct, ok := a.currencies[currency]
	if !ok {
		ct = &CurrencyTotal{Currency: currency}
		a.currencies[currency] = ct
	}
	ct.Net += amount
	ct.Count++
	if amount >= 0 {
		a.agg.Gross += amount
		ct.Gross += amount
	} else {
		a.agg.Refunded -= amount
		ct.Refunded -= amount
	}

	if a.bucket == BucketNone {
		return
	}
	key := bucketKey{start: a.bucket.Start(occurredAt), currency: currency}
	bt, ok := a.buckets[key]
	if !ok {
		bt = &BucketTotal{Start: key.start, Currency: currency}
		a.buckets[key] = bt
	}
	bt.Net += amount
	bt.Count++
}

func (a *accumulator) result() *Aggregate {
	out := a.agg
	out.ByCurrency = make([]CurrencyTotal, 0, len(a.currencies))
	for _, ct := range a.currencies {
		out.ByCurrency = append(out.ByCurrency, *ct)
	}
	sort.Slice(out.ByCurrency, func(i, j int) bool {
		return out.ByCurrency[i].Currency < out.ByCurrency[j].Currency
	})

	if len(a.buckets) > 0 {
		out.ByBucket = make([]BucketTotal, 0, len(a.buckets))
		for _, bt := range a.buckets {
			out.ByBucket = append(out.ByBucket, *bt)
		}
		sort.Slice(out.ByBucket, func(i, j int) bool {
			if !out.ByBucket[i].Start.Equal(out.ByBucket[j].Start) {
				return out.ByBucket[i].Start.Before(out.ByBucket[j].Start)
			}
			return out.ByBucket[i].Currency < out.ByBucket[j].Currency
		})
	}
	return &out
}
