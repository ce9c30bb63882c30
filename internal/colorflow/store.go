package colorflow

import (
	"errors"
	"fmt"

	"colorflow-server/internal/game"
)

// OpenStore pauses the clock while the player browses.
func (s *Session) OpenStore() error {
	if s.Phase != PhasePlaying {
		return errors.New("NOT_PLAYING: No game in progress")
	}
	s.StoreOpen = true
	return nil
}

// CloseStore resumes the clock, but only if time remains; a game that ran
// out while paused stays at zero and the next tick ends it.
func (s *Session) CloseStore() {
	s.StoreOpen = false
}

// PurchaseItem spends in-game coins on a theme or effect. Buying an item
// already owned just re-activates it at no charge. A failed purchase leaves
// coins and inventory exactly as they were.
func (s *Session) PurchaseItem(itemId string) error {
	if theme, ok := game.Themes[itemId]; ok {
		return s.purchaseTheme(theme)
	}
	if effect, ok := game.Effects[itemId]; ok {
		return s.purchaseEffect(effect)
	}
	return fmt.Errorf("INVALID_ITEM: Unknown store item '%s'", itemId)
}

func (s *Session) purchaseTheme(theme game.Theme) error {
	if !s.Inventory.OwnsTheme(theme.Id) {
		if s.Inventory.Coins < theme.Price {
			return errors.New("INSUFFICIENT_COINS: Not enough coins for this theme")
		}
		s.Inventory.Coins -= theme.Price
		s.Inventory.AddTheme(theme.Id)
	}
	s.Inventory.ActiveTheme = theme.Id
	return nil
}

func (s *Session) purchaseEffect(effect game.Effect) error {
	if !s.Inventory.OwnsEffect(effect.Id) {
		if s.Inventory.Coins < effect.Price {
			return errors.New("INSUFFICIENT_COINS: Not enough coins for this effect")
		}
		s.Inventory.Coins -= effect.Price
		s.Inventory.AddEffect(effect.Id)
	}
	s.Inventory.ActiveEffect = effect.Id
	return nil
}

// WatchAd grants the free coin reward for a simulated advertisement view,
// rate limited by a tick-driven cooldown.
func (s *Session) WatchAd() error {
	if s.AdWait > 0 {
		return errors.New("AD_COOLDOWN: Ad reward not available yet")
	}
	s.Inventory.AddCoins(game.AdReward)
	s.AdWait = AdCooldown
	return nil
}
