package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"math/bits"
	"os"
	"sort"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/promo-engine/internal/domain/discount"
)

const (
	bloomFPR      = 0.001
	maxFiles      = 64
	maxLineBytes  = 1 << 20
	progressEvery = 100_000
	writeBatch    = 500
)

// record is one JSONL line.
type record struct {
	Code           string           `json:"code"`
	Type           string           `json:"type"`
	Value          decimal.Decimal  `json:"value"`
	Description    string           `json:"description"`
	AllowAutoApply bool             `json:"allowAutoApply"`
	ProductIDs     []string         `json:"productIds"`
	CategoryIDs    []string         `json:"categoryIds"`
	MinOrderAmount *decimal.Decimal `json:"minOrderAmount"`
	MaxUsage       *int             `json:"maxUsage"`
	StartsAt       *time.Time       `json:"startsAt"`
	ExpiresAt      *time.Time       `json:"expiresAt"`
	Status         string           `json:"status"`
	FirstOrderOnly bool             `json:"firstOrderOnly"`
	ReferralCode   string           `json:"referralCode"`
}

func (r *record) toDiscount() (discount.Discount, error) {
	d := discount.Discount{
		Code:           discount.NormalizeCode(r.Code),
		Type:           discount.Type(r.Type),
		Value:          r.Value,
		Description:    r.Description,
		AllowAutoApply: r.AllowAutoApply,
		ProductIDs:     r.ProductIDs,
		CategoryIDs:    r.CategoryIDs,
		MinOrderAmount: r.MinOrderAmount,
		MaxUsage:       r.MaxUsage,
		StartsAt:       r.StartsAt,
		ExpiresAt:      r.ExpiresAt,
		Status:         discount.Status(r.Status),
		FirstOrderOnly: r.FirstOrderOnly,
		ReferralCode:   r.ReferralCode,
	}
	if d.Status == "" {
		d.Status = discount.StatusActive
	}

	switch {
	case d.Code == "":
		return d, errors.New("code is required")
	case d.Type != discount.TypePercentage && d.Type != discount.TypeFixed:
		return d, errors.Errorf("unknown type %q", r.Type)
	case d.Value.IsNegative():
		return d, errors.New("value must not be negative")
	case d.MaxUsage != nil && *d.MaxUsage < 0:
		return d, errors.New("maxUsage must not be negative")
	case d.MaxUsage != nil && *d.MaxUsage > math.MaxInt32:
		return d, errors.New("maxUsage is too large")
	}
	switch d.Status {
	case discount.StatusActive, discount.StatusDisabled, discount.StatusScheduled:
	default:
		return d, errors.Errorf("unknown status %q", r.Status)
	}
	return d, nil
}

// fileDiscounts holds the valid discounts of one file. Within a file the
// last definition of a code wins.
type fileDiscounts struct {
	discounts []discount.Discount
	filter    *bloom.BloomFilter
}

// readFiles parses every file concurrently.
func readFiles(ctx context.Context, files []string) ([]fileDiscounts, error) {
	out := make([]fileDiscounts, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return errors.Wrapf(err, "open %s", path)
			}
			defer func() { _ = f.Close() }()

			gz, err := pgzip.NewReader(f)
			if err != nil {
				return errors.Wrapf(err, "create gzip reader for %s", path)
			}
			defer func() { _ = gz.Close() }()

			fd, err := parseFile(ctx, gz, i+1)
			if err != nil {
				return errors.Wrapf(err, "parse %s", path)
			}
			out[i] = fd
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseFile(ctx context.Context, r io.Reader, fileNo int) (fileDiscounts, error) {
	var (
		byCode  = make(map[string]int)
		result  []discount.Discount
		line    int
		skipped int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return fileDiscounts{}, err
		}
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			slog.Warn("skipping malformed line",
				slog.Int("file", fileNo), slog.Int("line", line), slog.String("error", err.Error()))
			skipped++
			continue
		}
		d, err := rec.toDiscount()
		if err != nil {
			slog.Warn("skipping invalid discount",
				slog.Int("file", fileNo), slog.Int("line", line), slog.String("error", err.Error()))
			skipped++
			continue
		}

		if idx, ok := byCode[d.Code]; ok {
			result[idx] = d
		} else {
			byCode[d.Code] = len(result)
			result = append(result, d)
		}

		if line%progressEvery == 0 {
			slog.Info("read progress", slog.Int("file", fileNo), slog.Int("lines", line))
		}
	}
	if err := scanner.Err(); err != nil {
		return fileDiscounts{}, errors.Wrap(err, "scan")
	}

	filter := bloom.NewWithEstimates(uint(max(len(result), 1)), bloomFPR)
	for i := range result {
		filter.AddString(result[i].Code)
	}

	slog.Info("file read",
		slog.Int("file", fileNo),
		slog.Int("discounts", len(result)),
		slog.Int("skipped", skipped),
	)
	return fileDiscounts{discounts: result, filter: filter}, nil
}

// dedupe drops codes that appear in two or more files. Each file checks its
// codes against the other files' bloom filters; a code only counts as
// duplicated once at least two files flagged it, which rules out bloom false
// positives. Survivors keep file order.
func dedupe(files []fileDiscounts) (survivors []discount.Discount, duplicates []string) {
	masks := make(map[string]uint)
	for i, fd := range files {
		bit := uint(1) << uint(i)
		for j := range fd.discounts {
			code := fd.discounts[j].Code
			for k, other := range files {
				if k != i && other.filter.TestString(code) {
					masks[code] |= bit
					break
				}
			}
		}
	}

	dup := make(map[string]bool)
	for code, mask := range masks {
		if bits.OnesCount(mask) >= 2 {
			dup[code] = true
		}
	}

	for _, fd := range files {
		for _, d := range fd.discounts {
			if dup[d.Code] {
				continue
			}
			survivors = append(survivors, d)
		}
	}
	for code := range dup {
		duplicates = append(duplicates, code)
	}
	sort.Strings(duplicates)
	return survivors, duplicates
}
