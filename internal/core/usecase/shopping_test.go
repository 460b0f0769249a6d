package usecase

import (
	"context"
	"testing"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/ports"
)

type productRepoFake struct {
	unmatched     []domain.Product
	matchedCalls  []string
	savedNutrients map[string]domain.Nutrients
	updateErr     error
}

func (f *productRepoFake) CreateReceipt(context.Context, *domain.Receipt, []domain.Product) error {
	return nil
}

func (f *productRepoFake) GetProduct(context.Context, string) (*domain.Product, error) {
	return nil, domain.ErrRecordNotFound
}

func (f *productRepoFake) ListUnmatchedProducts(context.Context, string) ([]domain.Product, error) {
	return f.unmatched, nil
}

func (f *productRepoFake) UpdateMatched(_ context.Context, productID, labelID string, nutrients domain.Nutrients) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.matchedCalls = append(f.matchedCalls, productID+"<-"+labelID)
	if f.savedNutrients == nil {
		f.savedNutrients = make(map[string]domain.Nutrients)
	}
	f.savedNutrients[productID] = nutrients
	return nil
}

type labelRepoFake struct {
	session      *domain.Session
	labels       []domain.Label
	saved        []domain.Label
	closed       bool
	labelMatched []string
}

func (f *labelRepoFake) SaveLabel(_ context.Context, label *domain.Label) error {
	f.saved = append(f.saved, *label)
	return nil
}

func (f *labelRepoFake) ListSessionLabels(context.Context, string) ([]domain.Label, error) {
	return f.labels, nil
}

func (f *labelRepoFake) EnsureOpenSession(context.Context, string) (*domain.Session, error) {
	return f.session, nil
}

func (f *labelRepoFake) CloseSession(_ context.Context, sessionID string) (*domain.Session, error) {
	if f.closed {
		return nil, domain.WrapError(domain.ErrSessionAlreadyClosed, "close session", domain.ErrSessionAlreadyClosed)
	}
	f.closed = true
	closed := *f.session
	closed.Status = domain.SessionClosed
	return &closed, nil
}

func (f *labelRepoFake) SetLabelMatched(_ context.Context, labelID, productID string) error {
	f.labelMatched = append(f.labelMatched, labelID+"->"+productID)
	return nil
}

func newShoppingFixture(products *productRepoFake, labels *labelRepoFake, provider ports.InferenceProvider) *ShoppingUseCase {
	orch := newTestOrchestrator(map[domain.TaskKind][]ports.InferenceProvider{
		domain.TaskLabelOCR: {provider},
	})
	return NewShoppingUseCase(orch, defaultMatcher(), products, labels, nil, nil)
}

func TestIngestLabelSavesExtractedLabel(t *testing.T) {
	labels := &labelRepoFake{session: &domain.Session{ID: "s1", OwnerID: "u1", Status: domain.SessionOpen}}
	provider := &providerFake{id: "v", status: 200, response: `{"name":"Молоко","brand":"Домик в деревне","weight":"1л","calories":64,"protein":3.2}`}

	uc := newShoppingFixture(&productRepoFake{}, labels, provider)
	if err := uc.IngestLabel(context.Background(), "u1", []byte("jpeg")); err != nil {
		t.Fatalf("IngestLabel() error = %v", err)
	}

	if len(labels.saved) != 1 {
		t.Fatalf("expected one saved label, got %d", len(labels.saved))
	}
	saved := labels.saved[0]
	if saved.SessionID != "s1" || saved.Name != "Молоко" || saved.Brand != "Домик в деревне" {
		t.Fatalf("unexpected saved label: %+v", saved)
	}
	if saved.Nutrients.Calories == nil || *saved.Nutrients.Calories != 64 {
		t.Fatalf("expected calories carried over, got %+v", saved.Nutrients)
	}
	if saved.Nutrients.Fiber != nil {
		t.Fatalf("absent label fields must stay nil, got %+v", saved.Nutrients)
	}
}

func TestIngestLabelRejectsNamelessExtraction(t *testing.T) {
	labels := &labelRepoFake{session: &domain.Session{ID: "s1", Status: domain.SessionOpen}}
	provider := &providerFake{id: "v", status: 200, response: `{"brand":"X"}`}

	uc := newShoppingFixture(&productRepoFake{}, labels, provider)
	err := uc.IngestLabel(context.Background(), "u1", []byte("jpeg"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(labels.saved) != 0 {
		t.Fatalf("nameless label must not be saved")
	}
}

func TestCloseSessionMatchesAndOverwritesNutrients(t *testing.T) {
	products := &productRepoFake{unmatched: []domain.Product{
		{ID: "p1", OwnerID: "u1", Name: "Молоко Домик в деревне 1л", Nutrients: domain.Nutrients{Calories: f64(50), Fat: f64(1.5)}},
	}}
	labels := &labelRepoFake{
		session: &domain.Session{ID: "s1", OwnerID: "u1", Status: domain.SessionOpen},
		labels: []domain.Label{{
			ID: "l1", SessionID: "s1", Name: "Молоко", Brand: "Домик в деревне", Weight: "1л",
			Nutrients: domain.Nutrients{Calories: f64(64), Protein: f64(3.2)},
		}},
	}

	uc := newShoppingFixture(products, labels, &providerFake{id: "v"})
	result, err := uc.CloseSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}

	if len(result.Pairs) != 1 || result.Pairs[0].ProductID != "p1" || result.Pairs[0].LabelID != "l1" {
		t.Fatalf("unexpected pairs: %+v", result.Pairs)
	}
	if len(products.matchedCalls) != 1 || products.matchedCalls[0] != "p1<-l1" {
		t.Fatalf("expected conditional product update, got %v", products.matchedCalls)
	}

	merged := products.savedNutrients["p1"]
	if merged.Calories == nil || *merged.Calories != 64 {
		t.Fatalf("label calories must overwrite product value, got %+v", merged)
	}
	if merged.Protein == nil || *merged.Protein != 3.2 {
		t.Fatalf("label protein must be copied, got %+v", merged)
	}
	if merged.Fat == nil || *merged.Fat != 1.5 {
		t.Fatalf("fields absent on the label must keep product values, got %+v", merged)
	}

	if len(labels.labelMatched) != 1 || labels.labelMatched[0] != "l1->p1" {
		t.Fatalf("expected label claim write, got %v", labels.labelMatched)
	}
}

func TestCloseSessionRunsOnce(t *testing.T) {
	labels := &labelRepoFake{session: &domain.Session{ID: "s1", OwnerID: "u1", Status: domain.SessionOpen}}
	uc := newShoppingFixture(&productRepoFake{}, labels, &providerFake{id: "v"})

	if _, err := uc.CloseSession(context.Background(), "s1"); err != nil {
		t.Fatalf("first close error = %v", err)
	}
	_, err := uc.CloseSession(context.Background(), "s1")
	if !domain.IsKind(err, domain.ErrSessionAlreadyClosed) {
		t.Fatalf("second close must not rerun the pass, got %v", err)
	}
}

func TestCloseSessionDropsConcurrentlyClaimedPairs(t *testing.T) {
	products := &productRepoFake{
		unmatched: []domain.Product{{ID: "p1", Name: "Молоко Домик в деревне 1л"}},
		updateErr: domain.WrapError(domain.ErrRecordNotFound, "update matched product", domain.ErrRecordNotFound),
	}
	labels := &labelRepoFake{
		session: &domain.Session{ID: "s1", OwnerID: "u1", Status: domain.SessionOpen},
		labels:  []domain.Label{{ID: "l1", Name: "Молоко", Brand: "Домик в деревне", Weight: "1л"}},
	}

	uc := newShoppingFixture(products, labels, &providerFake{id: "v"})
	result, err := uc.CloseSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	if len(result.Pairs) != 0 {
		t.Fatalf("pair whose write lost the race must drop from the result, got %+v", result.Pairs)
	}
	if len(labels.labelMatched) != 0 {
		t.Fatalf("label must not be claimed when the product write failed")
	}
}
