package adapters

import (
	"context"
	"fmt"

	"supplier-pricing/internal/types"
)

// Supplier2 hosts a single-page product configurator whose fields are
// addressed by name and whose category picker swaps the visible form.
const (
	s2Email        = "input[name=email]"
	s2Password     = "input[name=password]"
	s2LoginSubmit  = "form.login button[type=submit]"
	s2AccountMenu  = ".account-menu"
	s2Configurator = "#product-configurator"
	s2Category     = "#category"
	s2Width        = "input[name=dimension_width]"
	s2Height       = "input[name=dimension_height]"
	s2Material     = "select[name=frame_material]"
	s2Color        = "select[name=finish_color]"
	s2Options      = ".product-options"
	s2OptionFormat = ".product-options input[type=checkbox][value='%s']"
	s2Quote        = "#get-quote"
	s2Price        = ".quote-price"
)

var s2Categories = map[types.ProductType]string{
	types.ProductWindows: "Windows & Glazing",
	types.ProductDoors:   "Doors & Entries",
	types.ProductRoofing: "Roofing Systems",
}

// Supplier2Adapter drives the supplier2 configurator
type Supplier2Adapter struct {
	*BaseAdapter
}

// NewSupplier2Adapter creates a supplier2 adapter bound to driver
func NewSupplier2Adapter(config *types.Config, settings types.SupplierSettings, driver types.PageDriver, logger types.Logger) *Supplier2Adapter {
	return &Supplier2Adapter{BaseAdapter: NewBaseAdapter(config, settings, driver, logger)}
}

// Authenticate logs in with email and password. The account menu only
// renders for signed-in sessions.
func (a *Supplier2Adapter) Authenticate(ctx context.Context, creds types.Credentials) error {
	if err := a.RequireCredentials(creds); err != nil {
		return err
	}
	if a.Authenticated() {
		return nil
	}
	if err := a.Navigate(ctx, a.URL("account/login")); err != nil {
		return err
	}
	if err := a.ClearAndFill(ctx, s2Email, creds.Username); err != nil {
		return err
	}
	if err := a.ClearAndFill(ctx, s2Password, creds.Password); err != nil {
		return err
	}
	if err := a.ClickVisible(ctx, s2LoginSubmit); err != nil {
		return err
	}
	return a.ConfirmLogin(ctx, a.ShowsElement(s2AccountMenu), "account menu")
}

// OpenConfigurator loads the configurator and picks the product category
func (a *Supplier2Adapter) OpenConfigurator(ctx context.Context, productType types.ProductType) error {
	category, ok := s2Categories[productType]
	if !ok {
		return &types.ValidationRejectedError{Field: "product_type", Message: fmt.Sprintf("%q not sold by %s", productType, a.Supplier())}
	}
	if err := a.Navigate(ctx, a.URL("configurator")); err != nil {
		return err
	}
	if err := a.Driver().WaitFor(ctx, s2Configurator, types.Visible); err != nil {
		return fmt.Errorf("wait for configurator: %w", err)
	}
	return a.SelectOption(ctx, s2Category, category)
}

// SetDimension fills width and height in inches
func (a *Supplier2Adapter) SetDimension(ctx context.Context, width, height float64) error {
	if err := a.ValidateDimensions(width, height); err != nil {
		return err
	}
	if err := a.ClearAndFill(ctx, s2Width, FormatDimension(width)); err != nil {
		return err
	}
	if err := a.ClearAndFill(ctx, s2Height, FormatDimension(height)); err != nil {
		return err
	}
	return a.CheckValidation(ctx, "dimensions")
}

// SetMaterial selects the frame material
func (a *Supplier2Adapter) SetMaterial(ctx context.Context, material string) error {
	return a.SelectOption(ctx, s2Material, material)
}

// SetColor selects the finish color
func (a *Supplier2Adapter) SetColor(ctx context.Context, color string) error {
	return a.SelectOption(ctx, s2Color, color)
}

// SetUpgrades ticks the option checkboxes, such as glass type
func (a *Supplier2Adapter) SetUpgrades(ctx context.Context, upgrades []string) error {
	if len(upgrades) == 0 {
		return types.ErrNotApplicable
	}
	return a.SetCheckboxes(ctx, s2Options, s2OptionFormat, upgrades)
}

// Submit requests a quote
func (a *Supplier2Adapter) Submit(ctx context.Context) error {
	if err := a.ClickVisible(ctx, s2Quote); err != nil {
		return err
	}
	if err := a.CheckValidation(ctx, "configuration"); err != nil {
		return err
	}
	if err := a.Driver().WaitFor(ctx, s2Price, types.Visible); err != nil {
		return fmt.Errorf("wait for quote: %w", err)
	}
	return nil
}

// ReadRawPrice returns the quoted price text
func (a *Supplier2Adapter) ReadRawPrice(ctx context.Context) (string, error) {
	return a.ReadText(ctx, s2Price)
}
