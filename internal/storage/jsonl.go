package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"farmzap/internal/model"
)

// JsonlStorage appends transaction records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutTxBatch appends a batch of records as JSON lines.
func (s *JsonlStorage) PutTxBatch(_ context.Context, records []model.TxRecord) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal tx record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write tx record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

// JsonlStreams reads incentive streams exported by the indexer, one JSON
// object per line. Numbers may be quoted or bare.
type JsonlStreams struct {
	path string
}

func NewJsonlStreams(path string) *JsonlStreams {
	return &JsonlStreams{path: path}
}

// flexString accepts a JSON string or a bare JSON number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

type streamLine struct {
	ChefID       flexString `json:"chefId"`
	LpID         flexString `json:"lpId"`
	RewardCoin   string     `json:"rewardCoin"`
	TotalShares  flexString `json:"totalShares"`
	RewardAmount flexString `json:"rewardAmount"`
	StartTime    flexString `json:"startTime"`
	EndTime      flexString `json:"endTime"`
	Status       string     `json:"status"`
}

func (s *JsonlStreams) ListStreams(ctx context.Context) ([]model.IncentiveStream, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open streams: %w", err)
	}
	defer file.Close()

	var out []model.IncentiveStream
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var raw streamLine
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("decode stream line %d: %w", lineNo, err)
		}
		stream, err := raw.toModel()
		if err != nil {
			return nil, fmt.Errorf("stream line %d: %w", lineNo, err)
		}
		out = append(out, stream)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read streams: %w", err)
	}
	return out, nil
}

func (l streamLine) toModel() (model.IncentiveStream, error) {
	stream := model.IncentiveStream{
		ChefID:     model.CanonicalID(string(l.ChefID)),
		LpID:       model.CanonicalID(string(l.LpID)),
		RewardCoin: l.RewardCoin,
		Status:     l.Status,
	}
	if stream.ChefID == "" || stream.LpID == "" {
		return stream, fmt.Errorf("chefId and lpId are required")
	}
	var err error
	if stream.TotalShares, err = parseOptionalBig(string(l.TotalShares)); err != nil {
		return stream, fmt.Errorf("totalShares: %w", err)
	}
	if stream.RewardAmount, err = parseOptionalBig(string(l.RewardAmount)); err != nil {
		return stream, fmt.Errorf("rewardAmount: %w", err)
	}
	if stream.StartTime, err = parseOptionalInt(string(l.StartTime)); err != nil {
		return stream, fmt.Errorf("startTime: %w", err)
	}
	if stream.EndTime, err = parseOptionalInt(string(l.EndTime)); err != nil {
		return stream, fmt.Errorf("endTime: %w", err)
	}
	return stream, nil
}

func parseOptionalBig(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return n, nil
}

func parseOptionalInt(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.ParseInt(value, 10, 64)
}
