package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartOwner identifies a cart by user, or by anonymous session when UserID is nil.
type CartOwner struct {
	UserID    *uint
	SessionID string
}

func (o CartOwner) scope(db *gorm.DB) *gorm.DB {
	if o.UserID != nil {
		return db.Where("user_id = ?", *o.UserID)
	}
	return db.Where("session_id = ?", o.SessionID)
}

func (o CartOwner) newCart() *Cart {
	c := &Cart{}
	if o.UserID != nil {
		id := *o.UserID
		c.UserID = &id
	} else {
		sid := o.SessionID
		c.SessionID = &sid
	}
	return c
}

// ServiceSelection is an add-on chosen while adding a product to the cart.
type ServiceSelection struct {
	ServiceID   uint
	ProviderID  *uint
	ScheduledAt *time.Time
}

type CartsRepository struct {
	db *gorm.DB
}

func NewCartsRepository(db *gorm.DB) *CartsRepository {
	return &CartsRepository{db: db}
}

// GetCart returns the owner's cart with products and services loaded. An
// owner without a cart gets an empty, unsaved one.
func (r *CartsRepository) GetCart(ctx context.Context, owner CartOwner) (*Cart, error) {
	cart, err := loadCart(r.db.WithContext(ctx), owner)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return owner.newCart(), nil
	}
	return cart, err
}

func loadCart(db *gorm.DB, owner CartOwner) (*Cart, error) {
	if owner.UserID == nil && owner.SessionID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var cart Cart
	if err := owner.scope(db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("cart_items.id ASC") }).
		Preload("Items.Product").
		Preload("Items.Services.ProductService").
		First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func getOrCreateCart(tx *gorm.DB, owner CartOwner) (*Cart, error) {
	cart, err := loadCart(tx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if owner.UserID == nil && owner.SessionID == "" {
		return nil, Rule("cart", "no cart session")
	}
	cart = owner.newCart()
	if err := tx.Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem puts quantity units of a product in the cart. Adding a product that
// is already there increases the line's quantity and, when services are
// given, replaces its selected services.
func (r *CartsRepository) AddItem(ctx context.Context, owner CartOwner, productID uint, quantity int, selections []ServiceSelection, now time.Time) (*Cart, error) {
	if quantity < 1 {
		return nil, Rule("quantity", "must be at least 1")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := getOrCreateCart(tx, owner)
		if err != nil {
			return err
		}

		var product Product
		if err := tx.Preload("Services").First(&product, productID).Error; err != nil {
			return notFound(err, ErrProductNotFound)
		}
		if !product.IsActive() {
			return Rule("product_id", "%s is not available", product.Name)
		}
		if cart.QuantityOf(productID)+quantity > product.StockQuantity {
			return Rule("quantity", "only %d of %s in stock", product.StockQuantity, product.Name)
		}

		services, err := validateSelections(tx, &product, selections, now)
		if err != nil {
			return err
		}

		var line *CartItem
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				line = &cart.Items[i]
				break
			}
		}

		if line == nil {
			line = &CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity}
			if err := tx.Omit("Product", "Services").Create(line).Error; err != nil {
				return err
			}
		} else {
			line.Quantity += quantity
			if err := tx.Model(line).Update("quantity", line.Quantity).Error; err != nil {
				return err
			}
		}

		if len(services) > 0 {
			if err := tx.Where("cart_item_id = ?", line.ID).Delete(&CartItemService{}).Error; err != nil {
				return err
			}
			for i := range services {
				services[i].CartItemID = line.ID
			}
			if err := tx.Omit("ProductService").Create(&services).Error; err != nil {
				return err
			}
		}
		return touchCart(tx, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return r.GetCart(ctx, owner)
}

func validateSelections(tx *gorm.DB, product *Product, selections []ServiceSelection, now time.Time) ([]CartItemService, error) {
	out := make([]CartItemService, 0, len(selections))
	seen := make(map[uint]bool, len(selections))
	for _, sel := range selections {
		var svc *ProductService
		for i := range product.Services {
			if product.Services[i].ID == sel.ServiceID {
				svc = &product.Services[i]
			}
		}
		if svc == nil || !svc.IsActive {
			return nil, Rule("services", "service %d is not offered with %s", sel.ServiceID, product.Name)
		}
		if seen[svc.ID] {
			return nil, Rule("services", "%s selected twice", svc.Name)
		}
		seen[svc.ID] = true

		if sel.ScheduledAt != nil && !sel.ScheduledAt.After(now) {
			return nil, Rule("services", "appointment for %s must be in the future", svc.Name)
		}
		if sel.ProviderID != nil {
			var provider ServiceProvider
			if err := tx.Preload("Services").First(&provider, *sel.ProviderID).Error; err != nil {
				return nil, notFound(err, ErrProviderNotFound)
			}
			if !provider.IsActive || !provider.Offers(svc.ID) {
				return nil, Rule("services", "%s does not offer %s", provider.Name, svc.Name)
			}
		}
		out = append(out, CartItemService{
			ProductServiceID:  svc.ID,
			ServiceProviderID: sel.ProviderID,
			ScheduledAt:       sel.ScheduledAt,
		})
	}
	return out, nil
}

// UpdateQuantity sets the quantity of a line owned by owner's cart.
func (r *CartsRepository) UpdateQuantity(ctx context.Context, owner CartOwner, itemID uint, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, Rule("quantity", "must be at least 1")
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, cart, err := ownedItem(tx, owner, itemID)
		if err != nil {
			return err
		}
		var product Product
		if err := tx.First(&product, item.ProductID).Error; err != nil {
			return notFound(err, ErrProductNotFound)
		}
		if quantity > product.StockQuantity {
			return Rule("quantity", "only %d of %s in stock", product.StockQuantity, product.Name)
		}
		if err := tx.Model(item).Update("quantity", quantity).Error; err != nil {
			return err
		}
		return touchCart(tx, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return r.GetCart(ctx, owner)
}

func (r *CartsRepository) RemoveItem(ctx context.Context, owner CartOwner, itemID uint) (*Cart, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, cart, err := ownedItem(tx, owner, itemID)
		if err != nil {
			return err
		}
		if err := tx.Where("cart_item_id = ?", item.ID).Delete(&CartItemService{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(item).Error; err != nil {
			return err
		}
		return touchCart(tx, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return r.GetCart(ctx, owner)
}

func (r *CartsRepository) Clear(ctx context.Context, owner CartOwner) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := loadCart(tx, owner)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return emptyCart(tx, cart.ID)
	})
}

// SetCoupon stores (or with an empty code, removes) the cart's coupon.
func (r *CartsRepository) SetCoupon(ctx context.Context, owner CartOwner, code string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := getOrCreateCart(tx, owner)
		if err != nil {
			return err
		}
		return tx.Model(cart).Omit(clause.Associations).Update("coupon_code", NormalizeCouponCode(code)).Error
	})
}

// Merge moves a session cart into the user's cart, summing quantities of the
// same product and capping every line at available stock. Lines whose product
// is out of stock are dropped. The session cart is removed.
func (r *CartsRepository) Merge(ctx context.Context, sessionID string, userID uint) error {
	if sessionID == "" {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		guest, err := loadCart(tx, CartOwner{SessionID: sessionID})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		owner := CartOwner{UserID: &userID}
		target, err := getOrCreateCart(tx, owner)
		if err != nil {
			return err
		}

		for _, gi := range guest.Items {
			var existing *CartItem
			for i := range target.Items {
				if target.Items[i].ProductID == gi.ProductID {
					existing = &target.Items[i]
					break
				}
			}
			stock := gi.Product.StockQuantity
			if existing == nil && stock > 0 {
				updates := map[string]any{"cart_id": target.ID}
				if gi.Quantity > stock {
					updates["quantity"] = stock
				}
				if err := tx.Model(&CartItem{}).Where("id = ?", gi.ID).Updates(updates).Error; err != nil {
					return err
				}
				continue
			}
			if existing != nil {
				qty := existing.Quantity + gi.Quantity
				if qty > stock {
					qty = stock
				}
				if qty < existing.Quantity {
					qty = existing.Quantity
				}
				if err := tx.Model(&CartItem{}).Where("id = ?", existing.ID).Update("quantity", qty).Error; err != nil {
					return err
				}
			}
			// Merged into the user's line, or out of stock altogether.
			if err := tx.Where("cart_item_id = ?", gi.ID).Delete(&CartItemService{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&CartItem{}, gi.ID).Error; err != nil {
				return err
			}
		}

		if target.CouponCode == "" && guest.CouponCode != "" {
			if err := tx.Model(target).Omit(clause.Associations).Update("coupon_code", guest.CouponCode).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&Cart{}, guest.ID).Error
	})
}

func ownedItem(tx *gorm.DB, owner CartOwner, itemID uint) (*CartItem, *Cart, error) {
	var item CartItem
	if err := tx.First(&item, itemID).Error; err != nil {
		return nil, nil, notFound(err, ErrCartItemNotFound)
	}
	var cart Cart
	if err := tx.First(&cart, item.CartID).Error; err != nil {
		return nil, nil, notFound(err, ErrCartItemNotFound)
	}
	var owns bool
	if owner.UserID != nil {
		owns = cart.UserID != nil && *cart.UserID == *owner.UserID
	} else {
		owns = cart.SessionID != nil && *cart.SessionID == owner.SessionID
	}
	if !owns {
		return nil, nil, ErrForbidden
	}
	return &item, &cart, nil
}

func emptyCart(tx *gorm.DB, cartID uint) error {
	if err := tx.Where("cart_item_id IN (?)",
		tx.Model(&CartItem{}).Select("id").Where("cart_id = ?", cartID),
	).Delete(&CartItemService{}).Error; err != nil {
		return err
	}
	if err := tx.Where("cart_id = ?", cartID).Delete(&CartItem{}).Error; err != nil {
		return err
	}
	return tx.Model(&Cart{}).Where("id = ?", cartID).Update("coupon_code", "").Error
}

func touchCart(tx *gorm.DB, cartID uint) error {
	return tx.Model(&Cart{}).Where("id = ?", cartID).Update("updated_at", time.Now()).Error
}
