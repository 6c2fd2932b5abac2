package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"storefront/internal/app/uow"
	domainchat "storefront/internal/domain/chat"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	ChatsRepo    domainchat.Repository
	MessagesRepo domainchat.MessageRepository
}

func NewFactory(db *mongo.Database) Factory {
	return Factory{
		DB:           db,
		ChatsRepo:    NewChatRepository(db),
		MessagesRepo: NewMessageRepository(db),
	}
}

// Begin starts a session with a transaction. Read-only units use snapshot
// reads so a page and its total come from the same point in time.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, fmt.Errorf("mongo: start session: %w", err)
	}
	txnOpts := options.Transaction().
		SetReadPreference(readpref.Primary()).
		SetReadConcern(readconcern.Majority()).
		SetWriteConcern(writeconcern.Majority())
	if opts.ReadOnly {
		txnOpts = txnOpts.SetReadConcern(readconcern.Snapshot())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, fmt.Errorf("mongo: start transaction: %w", err)
	}
	return &Unit{session: session, chats: f.ChatsRepo, messages: f.MessagesRepo}, nil
}

type Unit struct {
	session mongo.Session

	chats    domainchat.Repository
	messages domainchat.MessageRepository
	done     bool
}

func (u *Unit) Chats() domainchat.Repository {
	return u.chats
}

func (u *Unit) Messages() domainchat.MessageRepository {
	return u.messages
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(ctx)
	if err := u.session.CommitTransaction(ctx); err != nil {
		return translateError(err)
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}

// translateError maps transaction aborts caused by concurrent writers to
// uow.ErrConflict so the command can be retried in a fresh unit. Reads inside
// a transaction can abort the same way and go through it too.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && labeled.HasErrorLabel(transientTransactionLabel) {
		return fmt.Errorf("%w: %v", uow.ErrConflict, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorCode(writeConflictCode) {
		return fmt.Errorf("%w: %v", uow.ErrConflict, err)
	}
	return err
}

const (
	writeConflictCode         = 112
	transientTransactionLabel = "TransientTransactionError"
)
