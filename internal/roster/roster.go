// Package roster imports the student registry from CSV exports of the
// university information system.
package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/byteedu/internal/chain"
	"github.com/MarcoPoloResearchLab/byteedu/internal/records"
	"go.uber.org/zap"
)

const (
	// KeyStudents is the record the registry is persisted under.
	KeyStudents = "students"

	// BatchSize is the number of students registered per batch receipt.
	BatchSize = 50

	minColumns = 4
)

var (
	// ErrNoStudents is returned when the file holds no importable row.
	ErrNoStudents = errors.New("roster: no valid students found")

	errMissingStore = errors.New("records store is required")
	noOpLogger      = zap.NewNop()
)

// Student is one registry entry, keyed by its wallet address.
type Student struct {
	Address      string         `json:"address" yaml:"address"`
	StudentID    string         `json:"studentId" yaml:"studentId"`
	Name         string         `json:"name" yaml:"name"`
	Region       records.Region `json:"region" yaml:"region"`
	MetadataURI  string         `json:"metadataURI" yaml:"metadataURI"`
	BatchTxHash  string         `json:"batchTxHash" yaml:"batchTxHash"`
	RegisteredAt time.Time      `json:"registeredAt" yaml:"registeredAt"`
}

// SkippedRow explains why a CSV line was not imported.
type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type BatchReceipt struct {
	Number int    `json:"number"`
	Size   int    `json:"size"`
	TxHash string `json:"txHash"`
}

type ImportReport struct {
	Registered int            `json:"registered"`
	Skipped    []SkippedRow   `json:"skipped"`
	Batches    []BatchReceipt `json:"batches"`
}

type Config struct {
	Store  *records.Store
	Logger *zap.Logger
}

type Importer struct {
	store  *records.Store
	logger *zap.Logger
}

func NewImporter(cfg Config) (*Importer, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Importer{store: cfg.Store, logger: logger}, nil
}

// Students returns the registry in registration order.
func (i *Importer) Students(ctx context.Context) ([]Student, error) {
	var students []Student
	if _, err := i.store.LoadDocument(ctx, KeyStudents, &students); err != nil {
		return nil, fmt.Errorf("roster: load registry: %w", err)
	}
	if students == nil {
		students = []Student{}
	}
	return students, nil
}

// Lookup returns the registry entry for a wallet address in any letter case.
func (i *Importer) Lookup(ctx context.Context, address string) (Student, bool, error) {
	if !chain.IsWalletAddress(address) {
		return Student{}, false, nil
	}
	students, err := i.Students(ctx)
	if err != nil {
		return Student{}, false, err
	}
	target := chain.NormalizeAddress(address)
	for _, student := range students {
		if student.Address == target {
			return student, true, nil
		}
	}
	return Student{}, false, nil
}

// Import reads studentAddress,studentId,name,region,metadataURI rows after a
// header line. Rows with missing columns, malformed addresses or unknown
// regions are skipped. A student already in the registry is replaced.
func (i *Importer) Import(ctx context.Context, source io.Reader) (ImportReport, error) {
	parsed, skipped, err := parse(source)
	if err != nil {
		return ImportReport{}, err
	}
	report := ImportReport{Skipped: skipped}
	for _, row := range skipped {
		i.logger.Warn("skipping roster row", zap.Int("line", row.Line), zap.String("reason", row.Reason))
	}
	if len(parsed) == 0 {
		return report, ErrNoStudents
	}

	registry, err := i.Students(ctx)
	if err != nil {
		return ImportReport{}, err
	}
	registeredAt := i.store.Now()
	for start := 0; start < len(parsed); start += BatchSize {
		batch := parsed[start:min(start+BatchSize, len(parsed))]
		txHash, err := i.store.Hashes().TxHash()
		if err != nil {
			return ImportReport{}, fmt.Errorf("roster: batch hash: %w", err)
		}
		for _, student := range batch {
			student.BatchTxHash = txHash
			student.RegisteredAt = registeredAt
			index := slices.IndexFunc(registry, func(existing Student) bool { return existing.Address == student.Address })
			if index >= 0 {
				registry[index] = student
			} else {
				registry = append(registry, student)
			}
		}
		receipt := BatchReceipt{Number: len(report.Batches) + 1, Size: len(batch), TxHash: txHash}
		report.Batches = append(report.Batches, receipt)
		report.Registered += len(batch)
		i.logger.Info("roster batch registered",
			zap.Int("batch", receipt.Number),
			zap.Int("size", receipt.Size),
			zap.String("tx_hash", receipt.TxHash))
	}

	if err := i.store.SaveDocument(ctx, KeyStudents, registry); err != nil {
		return ImportReport{}, fmt.Errorf("roster: save registry: %w", err)
	}
	return report, nil
}

func parse(source io.Reader) ([]Student, []SkippedRow, error) {
	reader := csv.NewReader(source)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var (
		students []Student
		skipped  []SkippedRow
		header   = true
	)
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			header = false
			skipped = append(skipped, SkippedRow{Line: parseErr.Line, Reason: fmt.Sprintf("malformed row: %v", parseErr.Err)})
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("roster: read csv: %w", err)
		}
		if header {
			header = false
			continue
		}
		line, _ := reader.FieldPos(0)
		for index := range fields {
			fields[index] = strings.TrimSpace(fields[index])
		}

		if len(fields) < minColumns {
			skipped = append(skipped, SkippedRow{Line: line, Reason: "insufficient columns"})
			continue
		}
		if !chain.IsWalletAddress(fields[0]) {
			skipped = append(skipped, SkippedRow{Line: line, Reason: fmt.Sprintf("invalid address: %s", fields[0])})
			continue
		}
		region, err := strconv.Atoi(fields[3])
		if err != nil || !records.Region(region).Valid() {
			skipped = append(skipped, SkippedRow{Line: line, Reason: fmt.Sprintf("invalid region: %s", fields[3])})
			continue
		}
		student := Student{
			Address:   chain.NormalizeAddress(fields[0]),
			StudentID: fields[1],
			Name:      fields[2],
			Region:    records.Region(region),
		}
		if len(fields) > minColumns {
			student.MetadataURI = fields[4]
		}
		students = append(students, student)
	}
	return students, skipped, nil
}
