package fixtures

import (
	"context"
	"testing"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/internal/repository"
	"github.com/nimasrn/drgame-ledger/pkg/pg"
	"github.com/stretchr/testify/require"
)

var (
	GameFC25 = model.Game{
		Title: "EA Sports FC 25",
		Prices: map[model.ConsoleType]int64{
			model.ConsoleOnlinePS5:  1_800_000,
			model.ConsoleOfflinePS5: 950_000,
			model.ConsoleOfflinePS4: 800_000,
		},
	}

	GameGodOfWar = model.Game{
		Title: "God of War Ragnarok",
		Prices: map[model.ConsoleType]int64{
			model.ConsoleOfflinePS5: 700_000,
			model.ConsoleDataPS5:    250_000,
		},
	}

	// GameXboxOnly has no PlayStation price.
	GameXboxOnly = model.Game{
		Title:  "Halo Infinite",
		Prices: map[model.ConsoleType]int64{model.ConsoleXbox: 400_000},
	}

	ProductController = model.Product{Title: "DualSense controller", Price: 3_200_000}
	ProductHeadset    = model.Product{Title: "Pulse 3D headset", Price: 4_100_000}
)

// Catalog holds the ids SeedCatalog assigned.
type Catalog struct {
	FC25       int64
	GodOfWar   int64
	XboxOnly   int64
	Controller int64
	Headset    int64
}

// SeedCatalog stores the fixture games and products through the catalog repository.
func SeedCatalog(t *testing.T, db *pg.DB) Catalog {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewCatalogRepository(db)

	game := func(g model.Game) int64 {
		created, err := repo.CreateGame(ctx, &g)
		require.NoError(t, err)
		return created.ID
	}
	product := func(p model.Product) int64 {
		created, err := repo.CreateProduct(ctx, &p)
		require.NoError(t, err)
		return created.ID
	}

	return Catalog{
		FC25:       game(GameFC25),
		GodOfWar:   game(GameGodOfWar),
		XboxOnly:   game(GameXboxOnly),
		Controller: product(ProductController),
		Headset:    product(ProductHeadset),
	}
}
