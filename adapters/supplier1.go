package adapters

import (
	"context"
	"fmt"

	"supplier-pricing/internal/types"
)

// Supplier1 renders a classic server-side form: fields are addressed by id,
// material and color are dropdowns, and there is no upgrades section.
const (
	s1Username     = "#username"
	s1Password     = "#password"
	s1LoginSubmit  = "form#login button[type=submit]"
	s1Width        = "#width"
	s1Height       = "#height"
	s1Material     = "#material"
	s1Color        = "#color"
	s1Calculate    = "#calculate-price"
	s1Price        = ".price-display"
	s1Configurator = "#configurator"
)

// s1Sections maps product types to the navigation links of the catalog
var s1Sections = map[types.ProductType]string{
	types.ProductWindows: "a[data-section=windows]",
	types.ProductDoors:   "a[data-section=doors]",
	types.ProductRoofing: "a[data-section=roofing]",
}

// Supplier1Adapter drives the supplier1 configurator
type Supplier1Adapter struct {
	*BaseAdapter
}

// NewSupplier1Adapter creates a supplier1 adapter bound to driver
func NewSupplier1Adapter(config *types.Config, settings types.SupplierSettings, driver types.PageDriver, logger types.Logger) *Supplier1Adapter {
	return &Supplier1Adapter{BaseAdapter: NewBaseAdapter(config, settings, driver, logger)}
}

// Authenticate logs in through the login form. A successful login
// redirects to the account dashboard.
func (a *Supplier1Adapter) Authenticate(ctx context.Context, creds types.Credentials) error {
	if err := a.RequireCredentials(creds); err != nil {
		return err
	}
	if a.Authenticated() {
		return nil
	}
	if err := a.Navigate(ctx, a.URL("login")); err != nil {
		return err
	}
	if err := a.ClearAndFill(ctx, s1Username, creds.Username); err != nil {
		return err
	}
	if err := a.ClearAndFill(ctx, s1Password, creds.Password); err != nil {
		return err
	}
	if err := a.ClickVisible(ctx, s1LoginSubmit); err != nil {
		return err
	}

	return a.ConfirmLogin(ctx, a.ReachesURL("dashboard"), "dashboard")
}

// OpenConfigurator follows the catalog link for the product type
func (a *Supplier1Adapter) OpenConfigurator(ctx context.Context, productType types.ProductType) error {
	link, ok := s1Sections[productType]
	if !ok {
		return &types.ValidationRejectedError{Field: "product_type", Message: fmt.Sprintf("%q not sold by %s", productType, a.Supplier())}
	}
	if err := a.Navigate(ctx, a.URL("products")); err != nil {
		return err
	}
	if err := a.ClickVisible(ctx, link); err != nil {
		return err
	}
	if err := a.Driver().WaitFor(ctx, s1Configurator, types.Visible); err != nil {
		return fmt.Errorf("wait for configurator: %w", err)
	}
	return nil
}

// SetDimension fills width and height in inches
func (a *Supplier1Adapter) SetDimension(ctx context.Context, width, height float64) error {
	if err := a.ValidateDimensions(width, height); err != nil {
		return err
	}
	if err := a.ClearAndFill(ctx, s1Width, FormatDimension(width)); err != nil {
		return err
	}
	if err := a.ClearAndFill(ctx, s1Height, FormatDimension(height)); err != nil {
		return err
	}
	return a.CheckValidation(ctx, "dimensions")
}

// SetMaterial selects the frame material
func (a *Supplier1Adapter) SetMaterial(ctx context.Context, material string) error {
	return a.SelectOption(ctx, s1Material, material)
}

// SetColor selects the finish color
func (a *Supplier1Adapter) SetColor(ctx context.Context, color string) error {
	return a.SelectOption(ctx, s1Color, color)
}

// SetUpgrades is a no-op; supplier1 has no upgrades section.
func (a *Supplier1Adapter) SetUpgrades(ctx context.Context, upgrades []string) error {
	if len(upgrades) > 0 {
		return &types.ValidationRejectedError{Field: "upgrades", Message: a.Supplier() + " offers no upgrades"}
	}
	return types.ErrNotApplicable
}

// Submit requests the price calculation
func (a *Supplier1Adapter) Submit(ctx context.Context) error {
	if err := a.ClickVisible(ctx, s1Calculate); err != nil {
		return err
	}
	if err := a.CheckValidation(ctx, "configuration"); err != nil {
		return err
	}
	if err := a.Driver().WaitFor(ctx, s1Price, types.Visible); err != nil {
		return fmt.Errorf("wait for price: %w", err)
	}
	return nil
}

// ReadRawPrice returns the displayed price text
func (a *Supplier1Adapter) ReadRawPrice(ctx context.Context) (string, error) {
	return a.ReadText(ctx, s1Price)
}
