package services

import (
	"shopfront/internal/apperr"
	"shopfront/internal/domain"
)

func requireBuyer(who domain.Identity) error {
	if !who.Authenticated || who.UserID <= 0 {
		return apperr.Unauthorized("log in to continue")
	}
	return nil
}

func requireAdmin(who domain.Identity) error {
	if err := requireBuyer(who); err != nil {
		return err
	}
	if !who.Admin {
		return apperr.Unauthorized("admin only")
	}
	return nil
}

func requireLineOwner(who domain.Identity, line domain.CartLine) error {
	if err := requireBuyer(who); err != nil {
		return err
	}
	if !who.Is(line.BuyerID) {
		return apperr.Unauthorized("cart line belongs to another buyer")
	}
	return nil
}
