package payments

import (
	"fmt"
	"log"

	"colorflow-server/internal/game"
)

// PowerUpChargesPerPurchase is how many charges one paid power-up grants.
const PowerUpChargesPerPurchase = 3

// Profiles is the player-state surface the dispatcher mutates. The sqlite
// store implements it in production; tests supply an in-memory double.
type Profiles interface {
	AddCoins(playerID string, amount int) error
	GrantTheme(playerID, themeID string) error
	GrantEffect(playerID, effectID string) error
	GrantPowerUpCharges(playerID, kind string, count int) error
}

// Dispatcher turns a completed payment's metadata into player rewards.
// Simulated sandbox completions and real platform completions both land
// here, so the two paths cannot drift apart.
type Dispatcher struct {
	profiles Profiles
}

func NewDispatcher(profiles Profiles) *Dispatcher {
	return &Dispatcher{profiles: profiles}
}

// Deliver applies the reward described by meta to the player.
func (d *Dispatcher) Deliver(playerID string, meta Metadata) error {
	switch meta.Type {
	case MetaCoins:
		pack, ok := game.CoinPacks[meta.PackID]
		if !ok {
			return fmt.Errorf("UNKNOWN_PACK: No coin pack %q", meta.PackID)
		}
		if err := d.profiles.AddCoins(playerID, pack.Total()); err != nil {
			return err
		}
		log.Printf("Delivered coin pack %s (%d coins) to player %s", meta.PackID, pack.Total(), playerID)
		return nil

	case MetaTheme:
		if _, ok := game.Themes[meta.ItemID]; !ok {
			return fmt.Errorf("UNKNOWN_THEME: No theme %q", meta.ItemID)
		}
		if err := d.profiles.GrantTheme(playerID, meta.ItemID); err != nil {
			return err
		}
		log.Printf("Delivered theme %s to player %s", meta.ItemID, playerID)
		return nil

	case MetaEffect:
		if _, ok := game.Effects[meta.ItemID]; !ok {
			return fmt.Errorf("UNKNOWN_EFFECT: No effect %q", meta.ItemID)
		}
		if err := d.profiles.GrantEffect(playerID, meta.ItemID); err != nil {
			return err
		}
		log.Printf("Delivered effect %s to player %s", meta.ItemID, playerID)
		return nil

	case MetaPowerUp:
		if err := d.profiles.GrantPowerUpCharges(playerID, meta.ItemID, PowerUpChargesPerPurchase); err != nil {
			return err
		}
		log.Printf("Delivered %d %s charges to player %s", PowerUpChargesPerPurchase, meta.ItemID, playerID)
		return nil
	}
	return fmt.Errorf("UNKNOWN_REWARD: Unsupported metadata type %q", meta.Type)
}
