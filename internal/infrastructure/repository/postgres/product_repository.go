package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// CreateReceipt writes the receipt and its products in one tx so a
// half-ingested receipt never becomes visible.
func (r *ProductRepository) CreateReceipt(ctx context.Context, receipt *domain.Receipt, products []domain.Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin receipt tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO receipts (id, owner_id, store, total, currency, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, receipt.ID, receipt.OwnerID, receipt.Store, receipt.Total, receipt.Currency, receipt.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}

	for _, p := range products {
		nutrientsJSON, err := json.Marshal(p.Nutrients)
		if err != nil {
			return fmt.Errorf("marshal nutrients: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO products (id, owner_id, receipt_id, name, category, quantity, nutrients, matched_label_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,'',$8,$9)
`, p.ID, p.OwnerID, receipt.ID, p.Name, p.Category, p.Quantity, nutrientsJSON, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert product %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit receipt tx: %w", err)
	}
	return nil
}

func (r *ProductRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, owner_id, name, category, quantity, nutrients, matched_label_id, created_at, updated_at
FROM products
WHERE id = $1
`, id)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get product", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

func (r *ProductRepository) ListUnmatchedProducts(ctx context.Context, ownerID string) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, owner_id, name, category, quantity, nutrients, matched_label_id, created_at, updated_at
FROM products
WHERE owner_id = $1 AND matched_label_id = ''
ORDER BY created_at, id
`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list unmatched products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

// UpdateMatched claims the product for a label only while it is still
// unmatched. A concurrent claim surfaces as ErrRecordNotFound.
func (r *ProductRepository) UpdateMatched(ctx context.Context, productID, labelID string, nutrients domain.Nutrients) error {
	nutrientsJSON, err := json.Marshal(nutrients)
	if err != nil {
		return fmt.Errorf("marshal nutrients: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE products
SET matched_label_id = $2, nutrients = $3, updated_at = $4
WHERE id = $1 AND matched_label_id = ''
`, productID, labelID, nutrientsJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update matched product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update matched product rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrRecordNotFound, "update matched product", fmt.Errorf("id %s not unmatched", productID))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var product domain.Product
	var nutrientsRaw []byte

	err := row.Scan(
		&product.ID, &product.OwnerID, &product.Name, &product.Category, &product.Quantity,
		&nutrientsRaw, &product.MatchedLabelID, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(nutrientsRaw) > 0 {
		if err := json.Unmarshal(nutrientsRaw, &product.Nutrients); err != nil {
			return nil, fmt.Errorf("unmarshal nutrients: %w", err)
		}
	}
	return &product, nil
}
