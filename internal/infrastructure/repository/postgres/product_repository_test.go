package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
)

func newProductRepo(t *testing.T) (*ProductRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewProductRepository(db), mock
}

func f64(v float64) *float64 { return &v }

func TestCreateReceiptWritesAllRowsInOneTx(t *testing.T) {
	repo, mock := newProductRepo(t)
	now := time.Now().UTC()

	receipt := &domain.Receipt{ID: "r1", OwnerID: "u1", Store: "Пятёрочка", Total: 314.5, Currency: "RUB", CreatedAt: now}
	products := []domain.Product{
		{ID: "p1", OwnerID: "u1", Name: "Молоко", Category: "молочные продукты", Quantity: 1, Nutrients: domain.Nutrients{Calories: f64(64)}, CreatedAt: now, UpdatedAt: now},
		{ID: "p2", OwnerID: "u1", Name: "Хлеб", Quantity: 2, CreatedAt: now, UpdatedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO receipts")).
		WithArgs("r1", "u1", "Пятёрочка", 314.5, "RUB", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WithArgs("p1", "u1", "r1", "Молоко", "молочные продукты", 1.0, sqlmock.AnyArg(), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WithArgs("p2", "u1", "r1", "Хлеб", "", 2.0, sqlmock.AnyArg(), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.CreateReceipt(context.Background(), receipt, products); err != nil {
		t.Fatalf("CreateReceipt() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateReceiptRollsBackOnProductFailure(t *testing.T) {
	repo, mock := newProductRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO receipts")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.CreateReceipt(context.Background(), &domain.Receipt{ID: "r1", CreatedAt: now},
		[]domain.Product{{ID: "p1", CreatedAt: now, UpdatedAt: now}})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetProductNotFound(t *testing.T) {
	repo, mock := newProductRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner_id, name, category, quantity, nutrients, matched_label_id, created_at, updated_at")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetProduct(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestListUnmatchedProductsDecodesNutrients(t *testing.T) {
	repo, mock := newProductRepo(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "owner_id", "name", "category", "quantity", "nutrients", "matched_label_id", "created_at", "updated_at"}).
		AddRow("p1", "u1", "Молоко", "молочные продукты", 1.0, []byte(`{"calories":64,"protein":3.2}`), "", now, now).
		AddRow("p2", "u1", "Хлеб", "", 2.0, []byte(`{}`), "", now, now)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE owner_id = $1 AND matched_label_id = ''")).
		WithArgs("u1").
		WillReturnRows(rows)

	products, err := repo.ListUnmatchedProducts(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListUnmatchedProducts() error = %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	if products[0].Nutrients.Calories == nil || *products[0].Nutrients.Calories != 64 {
		t.Fatalf("nutrients json must decode, got %+v", products[0].Nutrients)
	}
	if products[1].Nutrients.Calories != nil {
		t.Fatalf("empty nutrients must stay nil, got %+v", products[1].Nutrients)
	}
}

func TestUpdateMatchedClaimsUnmatchedProduct(t *testing.T) {
	repo, mock := newProductRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND matched_label_id = ''")).
		WithArgs("p1", "l1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateMatched(context.Background(), "p1", "l1", domain.Nutrients{Calories: f64(64)}); err != nil {
		t.Fatalf("UpdateMatched() error = %v", err)
	}
}

func TestUpdateMatchedLosesRace(t *testing.T) {
	repo, mock := newProductRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND matched_label_id = ''")).
		WithArgs("p1", "l1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateMatched(context.Background(), "p1", "l1", domain.Nutrients{})
	if !domain.IsKind(err, domain.ErrRecordNotFound) {
		t.Fatalf("zero affected rows must report ErrRecordNotFound, got %v", err)
	}
}
