package main

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obaidx/internal/key"
	"github.com/KilimcininKorOglu/obaidx/internal/object"
	"github.com/KilimcininKorOglu/obaidx/internal/storage/btree"
	"github.com/KilimcininKorOglu/obaidx/internal/storage/index"
)

// rankSamples bounds the position lookups, which walk the leaf chain.
const rankSamples = 100

type benchOptions struct {
	entries  int
	keyType  string
	capacity int
	seed     int64
}

func newBenchCmd() *cobra.Command {
	var opts benchOptions

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure insert, lookup, scan and remove throughput in memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVarP(&opts.entries, "entries", "n", 100000, "Number of entries")
	cmd.Flags().StringVarP(&opts.keyType, "key-type", "k", "int64", "Key type: int64, string, decimal or guid")
	cmd.Flags().IntVar(&opts.capacity, "capacity", 0, "Page capacity, 0 derives it from the key type")
	cmd.Flags().Int64Var(&opts.seed, "seed", 1, "Random seed")
	return cmd
}

// benchKeys returns n distinct keys of the named type in random order.
func benchKeys(typ string, n int, rng *rand.Rand) (key.Type, []key.Key, error) {
	perm := rng.Perm(n)
	keys := make([]key.Key, n)

	var t key.Type
	switch typ {
	case "int64":
		t = key.TypeInt64
		for i, v := range perm {
			keys[i] = key.Int64(int64(v))
		}
	case "string":
		t = key.TypeString
		for i, v := range perm {
			keys[i] = key.String(fmt.Sprintf("key-%09d", v))
		}
	case "decimal":
		t = key.TypeDecimal
		for i, v := range perm {
			keys[i] = key.Decimal(decimal.New(int64(v), -2))
		}
	case "guid":
		t = key.TypeGUID
		for i := range keys {
			var g uuid.UUID
			rng.Read(g[:])
			keys[i] = key.GUID(g)
		}
	default:
		return key.TypeInvalid, nil, errors.Newf("unsupported benchmark key type %q", typ)
	}
	return t, keys, nil
}

type phase struct {
	name string
	ops  int
	took time.Duration
}

func (p phase) print(w io.Writer) {
	rate := float64(p.ops) / p.took.Seconds()
	fmt.Fprintf(w, "%-8s %9d ops %12s %12.0f ops/s\n", p.name, p.ops, p.took.Round(time.Microsecond), rate)
}

func timed(name string, ops int, fn func() error) (phase, error) {
	start := time.Now()
	if err := fn(); err != nil {
		return phase{}, errors.Wrap(err, name)
	}
	return phase{name: name, ops: ops, took: time.Since(start)}, nil
}

func runBench(w io.Writer, opts benchOptions) error {
	if opts.entries <= 0 {
		return errors.Newf("entries must be positive, got %d", opts.entries)
	}

	rng := rand.New(rand.NewSource(opts.seed))
	t, keys, err := benchKeys(opts.keyType, opts.entries, rng)
	if err != nil {
		return err
	}

	ix, err := index.New(t, index.Options{
		Name:     "bench",
		Unique:   true,
		Capacity: opts.capacity,
		Objects:  object.NewHeap(),
	})
	if err != nil {
		return err
	}
	values := make([]*object.Blob, len(keys))
	for i := range values {
		values[i] = object.NewBlob(nil)
	}

	phases := []struct {
		name string
		ops  int
		fn   func() error
	}{
		{"insert", len(keys), func() error {
			for i, k := range keys {
				inserted, err := ix.Put(k, values[i])
				if err != nil {
					return err
				}
				if !inserted {
					return errors.Newf("key %s inserted twice", k)
				}
			}
			return nil
		}},
		{"lookup", len(keys), func() error {
			for i, k := range keys {
				obj, err := ix.Get(k)
				if err != nil {
					return err
				}
				if obj != values[i] {
					return errors.Newf("key %s resolved to the wrong value", k)
				}
			}
			return nil
		}},
		{"scan", len(keys), func() error {
			c, err := ix.Cursor(nil, nil, btree.Ascending)
			if err != nil {
				return err
			}
			n := 0
			for _, ok := c.Next(); ok; _, ok = c.Next() {
				n++
			}
			if err := c.Err(); err != nil {
				return err
			}
			if n != len(keys) {
				return errors.Newf("scan visited %d entries, want %d", n, len(keys))
			}
			return nil
		}},
		{"rank", min(rankSamples, len(keys)), func() error {
			for _, k := range keys[:min(rankSamples, len(keys))] {
				if _, err := ix.IndexOfKey(k); err != nil {
					return err
				}
			}
			return nil
		}},
		{"remove", len(keys) / 2, func() error {
			for _, k := range keys[:len(keys)/2] {
				if _, err := ix.Remove(k); err != nil {
					return err
				}
			}
			return nil
		}},
		{"check", 1, ix.Check},
	}

	fmt.Fprintf(w, "%d %s keys, seed %d\n", len(keys), t, opts.seed)
	for _, p := range phases {
		res, err := timed(p.name, p.ops, p.fn)
		if err != nil {
			return err
		}
		res.print(w)
	}

	stats, err := ix.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "height %d, capacity %d, %d leaf and %d internal pages, %d entries left\n",
		stats.Height, stats.Capacity, stats.LeafPages, stats.InternalPages, stats.Count)
	return nil
}
