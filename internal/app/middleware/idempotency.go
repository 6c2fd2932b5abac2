package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"golang.org/x/sync/singleflight"

	"storefront/internal/app/apperr"
	"storefront/internal/app/commands"
)

// IdempotentCommand is implemented by commands that may be replayed by clients.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // pointer matching the handler result type
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	Error      string
	ErrorKind  string
	ErrorField string
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// Idempotency replays the stored outcome of a previously seen key. Client
// errors are replayed too; storage failures are not stored so the client
// can retry them. Concurrent requests with the same key collapse into one
// execution within this process.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	var inflight singleflight.Group
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := idCmd.IdempotencyKey()
			res, err, _ := inflight.Do(key, func() (any, error) {
				return runIdempotent(ctx, store, codec, next, idCmd, key)
			})
			return res, err
		})
	}
}

func runIdempotent(ctx context.Context, store IdempotencyStore, codec ResultCodec, next commands.Bus, cmd IdempotentCommand, key string) (any, error) {
	rec, found, err := store.Get(ctx, key)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if found {
		return replay(rec, codec, cmd)
	}
	result, err := next.Dispatch(ctx, cmd)
	record := IdempotencyRecord{Key: key, OccurredAt: time.Now().UTC()}
	if err != nil {
		appErr, ok := apperr.As(err)
		if !ok || appErr.Kind == apperr.KindStorage {
			return nil, err
		}
		record.Error = appErr.Message
		record.ErrorKind = string(appErr.Kind)
		record.ErrorField = appErr.Field
		if saveErr := store.Save(ctx, record); saveErr != nil {
			return nil, errors.Join(err, saveErr)
		}
		return nil, err
	}
	if result != nil {
		payload, encErr := codec.Encode(result)
		if encErr != nil {
			return nil, encErr
		}
		record.Payload = payload
	}
	if saveErr := store.Save(ctx, record); saveErr != nil {
		return nil, apperr.Storage(saveErr)
	}
	return result, nil
}

func replay(rec IdempotencyRecord, codec ResultCodec, cmd IdempotentCommand) (any, error) {
	if rec.ErrorKind != "" || rec.Error != "" {
		kind := apperr.Kind(rec.ErrorKind)
		if kind == "" {
			kind = apperr.KindConflict
		}
		return nil, &apperr.Error{Kind: kind, Message: rec.Error, Field: rec.ErrorField}
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return normalizePrototype(proto), nil
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
