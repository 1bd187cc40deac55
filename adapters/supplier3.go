package adapters

import (
	"context"
	"fmt"
	"strings"

	"supplier-pricing/internal/types"
)

// Supplier3 is a script-heavy storefront: materials are radio buttons,
// colors are swatches and upgrades are checkboxes. Pricing works without
// an account, login only unlocks trade pricing.
const (
	s3LoginLink   = "a.login-link"
	s3Email       = "#user-email"
	s3Password    = "#user-password"
	s3LoginSubmit = ".login-form input[type=submit]"
	s3Greeting    = ".user-greeting"
	s3ProductsNav = ".main-nav .products"
	s3CategoryFmt = ".product-category[data-type='%s']"
	s3Width       = "input[data-field=width]"
	s3Height      = "input[data-field=height]"
	s3Materials   = ".material-options"
	s3MaterialFmt = ".material-options input[type=radio][value='%s']"
	s3Colors      = ".color-options"
	s3ColorFmt    = ".color-options .color-swatch[data-color='%s']"
	s3Upgrades    = ".upgrades"
	s3UpgradeFmt  = ".upgrades input[type=checkbox][value='%s']"
	s3Calculate   = ".calculate-btn"
	s3Price       = ".total-price .amount"
)

// Supplier3Adapter drives the supplier3 storefront
type Supplier3Adapter struct {
	*BaseAdapter
}

// NewSupplier3Adapter creates a supplier3 adapter bound to driver
func NewSupplier3Adapter(config *types.Config, settings types.SupplierSettings, driver types.PageDriver, logger types.Logger) *Supplier3Adapter {
	return &Supplier3Adapter{BaseAdapter: NewBaseAdapter(config, settings, driver, logger)}
}

// Authenticate signs in through the header login link when credentials exist
func (a *Supplier3Adapter) Authenticate(ctx context.Context, creds types.Credentials) error {
	if err := a.RequireCredentials(creds); err != nil {
		return err
	}
	if a.Authenticated() {
		return nil
	}
	if err := a.Navigate(ctx, a.URL("/")); err != nil {
		return err
	}
	if err := a.ClickVisible(ctx, s3LoginLink); err != nil {
		return err
	}
	if err := a.ClearAndFill(ctx, s3Email, creds.Username); err != nil {
		return err
	}
	if err := a.ClearAndFill(ctx, s3Password, creds.Password); err != nil {
		return err
	}
	if err := a.ClickVisible(ctx, s3LoginSubmit); err != nil {
		return err
	}
	return a.ConfirmLogin(ctx, a.ShowsElement(s3Greeting), "greeting")
}

// OpenConfigurator navigates through the products menu to the category
func (a *Supplier3Adapter) OpenConfigurator(ctx context.Context, productType types.ProductType) error {
	if err := a.Navigate(ctx, a.URL("/")); err != nil {
		return err
	}
	if err := a.ClickVisible(ctx, s3ProductsNav); err != nil {
		return err
	}
	if err := a.ClickVisible(ctx, fmt.Sprintf(s3CategoryFmt, productType)); err != nil {
		return err
	}
	if err := a.Driver().WaitFor(ctx, s3Materials, types.Present); err != nil {
		return fmt.Errorf("wait for configurator: %w", err)
	}
	return nil
}

// SetDimension fills width and height in inches
func (a *Supplier3Adapter) SetDimension(ctx context.Context, width, height float64) error {
	if err := a.ValidateDimensions(width, height); err != nil {
		return err
	}
	if err := a.ClearAndFill(ctx, s3Width, FormatDimension(width)); err != nil {
		return err
	}
	if err := a.ClearAndFill(ctx, s3Height, FormatDimension(height)); err != nil {
		return err
	}
	return a.CheckValidation(ctx, "dimensions")
}

// SetMaterial picks the material radio button
func (a *Supplier3Adapter) SetMaterial(ctx context.Context, material string) error {
	value := strings.ToLower(material)
	return a.ClickOption(ctx, s3Materials, fmt.Sprintf(s3MaterialFmt, value), value)
}

// SetColor clicks the color swatch
func (a *Supplier3Adapter) SetColor(ctx context.Context, color string) error {
	value := strings.ToLower(color)
	return a.ClickOption(ctx, s3Colors, fmt.Sprintf(s3ColorFmt, value), value)
}

// SetUpgrades ticks the requested upgrade checkboxes
func (a *Supplier3Adapter) SetUpgrades(ctx context.Context, upgrades []string) error {
	if len(upgrades) == 0 {
		return types.ErrNotApplicable
	}
	return a.SetCheckboxes(ctx, s3Upgrades, s3UpgradeFmt, upgrades)
}

// Submit triggers the price calculation
func (a *Supplier3Adapter) Submit(ctx context.Context) error {
	if err := a.ClickVisible(ctx, s3Calculate); err != nil {
		return err
	}
	if err := a.CheckValidation(ctx, "configuration"); err != nil {
		return err
	}
	if err := a.Driver().WaitFor(ctx, s3Price, types.Visible); err != nil {
		return fmt.Errorf("wait for price: %w", err)
	}
	return nil
}

// ReadRawPrice returns the total price text
func (a *Supplier3Adapter) ReadRawPrice(ctx context.Context) (string, error) {
	return a.ReadText(ctx, s3Price)
}
