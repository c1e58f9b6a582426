package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	experimentPrefix = "exp/"
	eventPrefix      = "evt/"
)

// BadgerStore is an embedded key-value backend. Documents are stored as an
// 8-byte big-endian version followed by the JSON body.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens a Badger directory. An empty path keeps the data in memory.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) Get(ctx context.Context, key string) (*Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var rec *Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = readRecord(txn, key)
		return err
	})
	if err != nil {
		return nil, badgerErr(err)
	}
	return rec, nil
}

func (s *BadgerStore) Create(ctx context.Context, key string, data []byte) (*Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(experimentKey(key))
		if err == nil {
			return ErrExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(experimentKey(key), encodeValue(1, data))
	})
	if err != nil {
		return nil, badgerErr(err)
	}
	return &Record{Key: key, Version: 1, Data: data}, nil
}

func (s *BadgerStore) CompareAndSwap(ctx context.Context, key string, expected uint64, data []byte, events ...ConversionEvent) (*Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := readRecord(txn, key)
		if err != nil {
			return err
		}
		if current.Version != expected {
			return ErrConflict
		}
		if err := txn.Set(experimentKey(key), encodeValue(expected+1, data)); err != nil {
			return err
		}
		for _, e := range events {
			if err := setEvent(txn, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, badgerErr(err)
	}
	return &Record{Key: key, Version: expected + 1, Data: data}, nil
}

func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(experimentKey(key)); err != nil {
			return err
		}
		return txn.Delete(experimentKey(key))
	})
	return badgerErr(err)
}

func (s *BadgerStore) List(ctx context.Context) ([]*Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var records []*Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(experimentPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			version, data, err := decodeValue(raw)
			if err != nil {
				return err
			}
			key := strings.TrimPrefix(string(item.Key()), experimentPrefix)
			records = append(records, &Record{Key: key, Version: version, Data: data})
		}
		return nil
	})
	if err != nil {
		return nil, badgerErr(err)
	}
	return records, nil
}

func (s *BadgerStore) Append(ctx context.Context, event ConversionEvent) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	return badgerErr(s.db.Update(func(txn *badger.Txn) error {
		return setEvent(txn, event)
	}))
}

func (s *BadgerStore) Events(ctx context.Context, experimentID string) ([]ConversionEvent, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	prefix := []byte(eventPrefix)
	if experimentID != "" {
		prefix = []byte(eventPrefix + experimentID + "/")
	}

	var events []ConversionEvent
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e ConversionEvent
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return err
			}
			events = append(events, e)
		}
		return nil
	})
	if err != nil {
		return nil, badgerErr(err)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events, nil
}

func readRecord(txn *badger.Txn, key string) (*Record, error) {
	item, err := txn.Get(experimentKey(key))
	if err != nil {
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	version, data, err := decodeValue(raw)
	if err != nil {
		return nil, err
	}
	return &Record{Key: key, Version: version, Data: data}, nil
}

func setEvent(txn *badger.Txn, e ConversionEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	key := fmt.Sprintf("%s%s/%020d/%s", eventPrefix, e.ExperimentID, e.Timestamp.UnixNano(), uuid.NewString())
	return txn.Set([]byte(key), body)
}

func experimentKey(key string) []byte {
	return []byte(experimentPrefix + key)
}

func encodeValue(version uint64, data []byte) []byte {
	buf := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(buf, version)
	copy(buf[8:], data)
	return buf
}

func decodeValue(raw []byte) (uint64, []byte, error) {
	if len(raw) < 8 {
		return 0, nil, fmt.Errorf("corrupt record: %d bytes", len(raw))
	}
	return binary.BigEndian.Uint64(raw[:8]), raw[8:], nil
}

func badgerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return ErrNotFound
	case errors.Is(err, badger.ErrConflict):
		return ErrConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrExists):
		return err
	case errors.Is(err, badger.ErrDBClosed):
		return errors.Join(ErrUnavailable, err)
	default:
		return err
	}
}
