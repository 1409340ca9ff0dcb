package shop

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/client"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/spf13/cobra"
)

func (sh *shell) loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:         "login <username>",
		Short:       "Log in to the storefront",
		Args:        cobra.ExactArgs(1),
		Annotations: page("/login"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = sh.opts.Getenv("STOREFRONT_PASSWORD")
			}
			if password == "" {
				return errors.New("password is required: use --password or STOREFRONT_PASSWORD")
			}
			user, err := sh.client.Login(cmd.Context(), args[0], password)
			if err != nil {
				if client.IsUnauthorized(err) {
					return errors.New("invalid username or password")
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Logged in as %s\n", sh.paint.ok("✓"), user.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (or STOREFRONT_PASSWORD)")
	return cmd
}

func (sh *shell) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sh.client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (sh *shell) meCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "me",
		Short:       "Show the logged-in user",
		Args:        cobra.NoArgs,
		Annotations: page("/profile"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := sh.client.Me(cmd.Context())
			if err != nil {
				return err
			}
			return writeUser(cmd.OutOrStdout(), user)
		},
	}
}

func (sh *shell) productsCmd() *cobra.Command {
	var (
		pageNum  int
		category string
		search   string
		sortSpec string
	)
	cmd := &cobra.Command{
		Use:         "products",
		Short:       "List products",
		Args:        cobra.NoArgs,
		Annotations: page("/products"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := model.ProductQuery{
				Limit: client.PageSize,
				Skip:  client.SkipForPage(pageNum, client.PageSize),
			}
			var err error
			if q.SortBy, q.Order, err = parseSort(sortSpec); err != nil {
				return err
			}

			ctx := cmd.Context()
			var result *model.ProductsPage
			switch {
			case search != "":
				result, err = sh.client.SearchProducts(ctx, search, q)
			case category != "":
				result, err = sh.client.ProductsByCategory(ctx, category, q)
			default:
				result, err = sh.client.FetchProducts(ctx, q)
			}
			if err != nil {
				return err
			}
			return writeProducts(cmd.OutOrStdout(), result, max(pageNum, 1), sh.paint)
		},
	}
	cmd.Flags().IntVar(&pageNum, "page", 1, "page number (12 products per page)")
	cmd.Flags().StringVar(&category, "category", "", "category slug")
	cmd.Flags().StringVar(&search, "search", "", "search keyword")
	cmd.Flags().StringVar(&sortSpec, "sort", "", "sort as field:order, for example price:asc")
	return cmd
}

func (sh *shell) productCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "product <id>",
		Short:       "Show product details",
		Args:        cobra.ExactArgs(1),
		Annotations: page("/products"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := sh.client.GetProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeProduct(cmd.OutOrStdout(), p, sh.paint)
		},
	}
}

func (sh *shell) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "categories",
		Short:       "List product categories",
		Args:        cobra.NoArgs,
		Annotations: page("/products"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			categories, err := sh.client.Categories(cmd.Context())
			if err != nil {
				return err
			}
			return writeCategories(cmd.OutOrStdout(), categories)
		},
	}
}

func (sh *shell) addCmd() *cobra.Command {
	var quantity int
	cmd := &cobra.Command{
		Use:         "add <product-id>",
		Short:       "Add a product to the cart",
		Args:        cobra.ExactArgs(1),
		Annotations: page("/cart"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			p, err := sh.client.GetProduct(ctx, id)
			if err != nil {
				return err
			}
			c, err := cart.AddProduct(ctx, sh.cart, sh.notifier, *p, quantity)
			if errors.Is(err, cart.ErrOutOfStock) {
				return fmt.Errorf("%s is out of stock", p.Title)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if note, ok := sh.notifier.Consume(ctx); ok {
				fmt.Fprintf(out, "%s %s\n", sh.paint.ok("✓"), note.Message)
			}
			fmt.Fprintf(out, "Cart: %d item(s), $%s\n", c.ItemCount, c.Total.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().IntVarP(&quantity, "qty", "q", 1, "quantity, limited to the product stock")
	return cmd
}

func (sh *shell) cartCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "cart",
		Short:       "Show the cart and order summary",
		Args:        cobra.NoArgs,
		Annotations: page("/cart"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeCart(cmd.OutOrStdout(), sh.cart.State(), sh.paint)
		},
	}
}

func (sh *shell) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "remove <product-id>",
		Short:       "Remove a product from the cart",
		Args:        cobra.ExactArgs(1),
		Annotations: page("/cart"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := sh.cart.RemoveItem(cmd.Context(), id)
			return writeCart(cmd.OutOrStdout(), c, sh.paint)
		},
	}
}

func (sh *shell) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "set <product-id> <quantity>",
		Short:       "Change the quantity of a cart item (0 removes it)",
		Args:        cobra.ExactArgs(2),
		Annotations: page("/cart"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			c := sh.cart.SetQuantity(cmd.Context(), id, quantity)
			return writeCart(cmd.OutOrStdout(), c, sh.paint)
		},
	}
}

func (sh *shell) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "clear",
		Short:       "Empty the cart",
		Args:        cobra.NoArgs,
		Annotations: page("/cart"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			sh.cart.Clear(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Your cart is empty")
			return nil
		},
	}
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q", s)
	}
	return id, nil
}

// parseSort は "field:order" をsortByとorderに分解する。空文字列はソートなし。
func parseSort(value string) (sortBy, order string, err error) {
	if value == "" {
		return "", "", nil
	}
	field, dir, ok := strings.Cut(value, ":")
	if !ok || field == "" || (dir != "asc" && dir != "desc") {
		return "", "", fmt.Errorf("invalid sort %q: use field:asc or field:desc", value)
	}
	return field, dir, nil
}
