package repository

import (
	"context"
	"fmt"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/pkg/pg"
)

// CatalogRepository reads games and products. Catalog editing lives elsewhere;
// Create exists for seeding.
type CatalogRepository struct {
	*pg.DB
}

func NewCatalogRepository(db *pg.DB) *CatalogRepository {
	return &CatalogRepository{db}
}

func (r *CatalogRepository) CreateGame(ctx context.Context, g *model.Game) (*model.Game, error) {
	entity := toGameEntity(g)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return toGameModel(entity), nil
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	entity := &ProductEntity{Title: p.Title, Price: p.Price, Lifecycle: model.LifecycleActive}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &model.Product{ID: entity.ID, Title: entity.Title, Price: entity.Price, Lifecycle: entity.Lifecycle}, nil
}

// GamesByIDs returns the games keyed by id; a missing id is a not-found error.
func (r *CatalogRepository) GamesByIDs(ctx context.Context, ids []int64) (map[int64]*model.Game, error) {
	var entities []*GameEntity
	if err := r.Read(ctx).Where("id IN ?", ids).Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}
	out := make(map[int64]*model.Game, len(entities))
	for _, e := range entities {
		out[e.ID] = toGameModel(e)
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, model.NotFound("game", id)
		}
	}
	return out, nil
}

func (r *CatalogRepository) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]*model.Product, error) {
	var entities []*ProductEntity
	if err := r.Read(ctx).Scopes(active).Where("id IN ?", ids).Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	out := make(map[int64]*model.Product, len(entities))
	for _, e := range entities {
		out[e.ID] = &model.Product{ID: e.ID, Title: e.Title, Price: e.Price, Lifecycle: e.Lifecycle}
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, model.NotFound("product", id)
		}
	}
	return out, nil
}
