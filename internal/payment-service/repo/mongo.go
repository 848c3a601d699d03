package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/chiearnhub/payment-bridge/internal/payment-service/deposit"
)

const (
	colDeposits = "deposits"
	colUsers    = "users"
	colLedger   = "balance_ledger"
)

type depositDoc struct {
	ID         string     `bson:"_id"`
	UserID     string     `bson:"userId"`
	Email      string     `bson:"email"`
	Amount     int64      `bson:"amount"`
	Method     string     `bson:"method"`
	Reference  string     `bson:"reference"`
	Status     string     `bson:"status"`
	PaymentURL string     `bson:"paymentUrl"`
	CreatedAt  time.Time  `bson:"createdAt"`
	PaidAt     *time.Time `bson:"paidAt,omitempty"`
}

func (d depositDoc) toDomain() *deposit.Deposit {
	return &deposit.Deposit{
		ID:         d.ID,
		UserID:     d.UserID,
		Email:      d.Email,
		Amount:     d.Amount,
		Method:     d.Method,
		Reference:  d.Reference,
		Status:     deposit.Status(d.Status),
		PaymentURL: d.PaymentURL,
		CreatedAt:  d.CreatedAt,
		PaidAt:     d.PaidAt,
	}
}

type userDoc struct {
	ID        string    `bson:"_id"`
	Balance   int64     `bson:"balance"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Mongo implementa deposit.Store com documentos por depositId e userId.
// ApproveDeposit usa transação multi-documento: exige replica set.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongo(client *mongo.Client, dbName string) *Mongo {
	return &Mongo{client: client, db: client.Database(dbName)}
}

// EnsureIndexes cria os índices únicos (equivalente ao schema do Postgres)
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	if _, err := m.db.Collection(colDeposits).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "reference", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	}); err != nil {
		return err
	}
	_, err := m.db.Collection(colLedger).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "depositId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// CreateDeposit faz upsert filtrando status != approved. Se o documento já
// está aprovado o filtro não casa, o upsert tenta inserir o mesmo _id e o
// erro de chave duplicada vira ErrAlreadyApproved.
func (m *Mongo) CreateDeposit(ctx context.Context, d *deposit.Deposit) error {
	filter := bson.M{"_id": d.ID, "status": bson.M{"$ne": string(deposit.StatusApproved)}}
	update := bson.M{
		"$set": bson.M{
			"userId":     d.UserID,
			"email":      d.Email,
			"amount":     d.Amount,
			"method":     d.Method,
			"reference":  d.Reference,
			"status":     string(d.Status),
			"paymentUrl": "",
			"createdAt":  d.CreatedAt,
		},
		"$unset": bson.M{"paidAt": ""},
	}
	_, err := m.db.Collection(colDeposits).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return deposit.ErrAlreadyApproved
	}
	return err
}

func (m *Mongo) MarkPending(ctx context.Context, depositID, paymentURL string) error {
	res, err := m.db.Collection(colDeposits).UpdateOne(ctx,
		bson.M{"_id": depositID, "status": bson.M{"$ne": string(deposit.StatusApproved)}},
		bson.M{"$set": bson.M{"paymentUrl": paymentURL, "status": string(deposit.StatusPending)}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if _, err := m.GetDeposit(ctx, depositID); err != nil {
		return err
	}
	return deposit.ErrAlreadyApproved
}

func (m *Mongo) GetDeposit(ctx context.Context, depositID string) (*deposit.Deposit, error) {
	var doc depositDoc
	err := m.db.Collection(colDeposits).FindOne(ctx, bson.M{"_id": depositID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, deposit.ErrDepositNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (m *Mongo) GetUser(ctx context.Context, userID string) (*deposit.User, error) {
	var doc userDoc
	err := m.db.Collection(colUsers).FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, deposit.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &deposit.User{ID: doc.ID, Balance: doc.Balance}, nil
}

// ApproveDeposit roda dentro de WithTransaction. Webhooks concorrentes geram
// write conflict; o driver repete a função e a segunda tentativa já enxerga
// o depósito aprovado.
func (m *Mongo) ApproveDeposit(ctx context.Context, depositID string, paidAt time.Time) (*deposit.Approval, error) {
	sess, err := m.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var doc depositDoc
		err := m.db.Collection(colDeposits).FindOne(sc, bson.M{"_id": depositID}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, deposit.ErrDepositNotFound
		}
		if err != nil {
			return nil, err
		}
		if doc.Status == string(deposit.StatusApproved) {
			return nil, deposit.ErrAlreadyApproved
		}

		upd, err := m.db.Collection(colDeposits).UpdateOne(sc,
			bson.M{"_id": depositID, "status": bson.M{"$ne": string(deposit.StatusApproved)}},
			bson.M{"$set": bson.M{"status": string(deposit.StatusApproved), "paidAt": paidAt}},
		)
		if err != nil {
			return nil, err
		}
		if upd.MatchedCount == 0 {
			return nil, deposit.ErrAlreadyApproved
		}

		// usuário sem documento nasce com saldo zero via upsert
		var user userDoc
		err = m.db.Collection(colUsers).FindOneAndUpdate(sc,
			bson.M{"_id": doc.UserID},
			bson.M{"$inc": bson.M{"balance": doc.Amount}, "$set": bson.M{"updatedAt": paidAt}},
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
		).Decode(&user)
		if err != nil {
			return nil, err
		}

		if _, err := m.db.Collection(colLedger).InsertOne(sc, bson.M{
			"_id":          uuid.NewString(),
			"userId":       doc.UserID,
			"depositId":    doc.ID,
			"amount":       doc.Amount,
			"balanceAfter": user.Balance,
			"createdAt":    paidAt,
		}); err != nil {
			return nil, err
		}

		doc.Status = string(deposit.StatusApproved)
		doc.PaidAt = &paidAt
		return &deposit.Approval{Deposit: *doc.toDomain(), NewBalance: user.Balance}, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*deposit.Approval), nil
}

func (m *Mongo) Ping(ctx context.Context) error { return m.client.Ping(ctx, readpref.Primary()) }

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
