package shop

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/client"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// palette は出力の強調表示。無効な場合は装飾しない。
type palette struct {
	ok   func(...any) string
	warn func(...any) string
	dim  func(...any) string
}

func newPalette(enabled bool) palette {
	if !enabled {
		return palette{ok: fmt.Sprint, warn: fmt.Sprint, dim: fmt.Sprint}
	}
	return palette{
		ok:   color.New(color.FgGreen).SprintFunc(),
		warn: color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:  color.New(color.FgHiBlack).SprintFunc(),
	}
}

func money(f float64) string {
	return "$" + strconv.FormatFloat(f, 'f', 2, 64)
}

func renderTable(w io.Writer, headers []string, data [][]string) error {
	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func writeProducts(w io.Writer, result *model.ProductsPage, current int, p palette) error {
	if len(result.Products) == 0 {
		_, err := fmt.Fprintln(w, "No products found")
		return err
	}

	data := make([][]string, 0, len(result.Products))
	for _, prod := range result.Products {
		sale := cart.ItemFromProduct(prod, 1).Price
		stock := strconv.Itoa(prod.Stock)
		if !cart.InStock(prod) {
			stock = p.warn("sold out")
		}
		data = append(data, []string{
			strconv.Itoa(prod.ID),
			prod.Title,
			prod.Category,
			money(prod.Price),
			"$" + sale.StringFixed(2),
			stock,
		})
	}
	if err := renderTable(w, []string{"ID", "Title", "Category", "Price", "Sale", "Stock"}, data); err != nil {
		return err
	}

	from, to := client.PageRange(result.Skip, client.PageSize, result.Total)
	fmt.Fprintf(w, "Showing %d-%d of %d\n", from, to, result.Total)

	window := client.PageWindow(current, client.TotalPages(result.Total, client.PageSize))
	if window == nil {
		return nil
	}
	labels := make([]string, len(window))
	for i, n := range window {
		if n == current {
			labels[i] = "[" + strconv.Itoa(n) + "]"
		} else {
			labels[i] = strconv.Itoa(n)
		}
	}
	fmt.Fprintf(w, "Pages: %s\n", strings.Join(labels, " "))
	if client.HasNextPage(result.Skip, client.PageSize, result.Total) {
		fmt.Fprintln(w, p.dim(fmt.Sprintf("Next: --page %d", current+1)))
	}
	return nil
}

func writeProduct(w io.Writer, prod *model.Product, p palette) error {
	sale := cart.ItemFromProduct(*prod, 1).Price
	stock := p.ok(fmt.Sprintf("%d in stock", prod.Stock))
	if !cart.InStock(*prod) {
		stock = p.warn("Out of stock")
	}

	fmt.Fprintf(w, "%s (#%d)\n", prod.Title, prod.ID)
	if prod.Brand != "" {
		fmt.Fprintf(w, "Brand:    %s\n", prod.Brand)
	}
	fmt.Fprintf(w, "Category: %s\n", prod.Category)
	fmt.Fprintf(w, "Price:    $%s (%s, -%.2f%%)\n", sale.StringFixed(2), money(prod.Price), prod.DiscountPercentage)
	fmt.Fprintf(w, "Rating:   %.2f\n", prod.Rating)
	fmt.Fprintf(w, "Stock:    %s\n", stock)
	if prod.Description != "" {
		fmt.Fprintf(w, "\n%s\n", prod.Description)
	}
	return nil
}

func writeCategories(w io.Writer, categories []model.Category) error {
	data := make([][]string, 0, len(categories))
	for _, c := range categories {
		data = append(data, []string{c.Slug, c.Name})
	}
	return renderTable(w, []string{"Slug", "Name"}, data)
}

func writeCart(w io.Writer, c model.Cart, p palette) error {
	if len(c.Items) == 0 {
		_, err := fmt.Fprintln(w, "Your cart is empty")
		return err
	}

	data := make([][]string, 0, len(c.Items))
	for _, item := range c.Items {
		data = append(data, []string{
			strconv.Itoa(item.ProductID),
			item.Title,
			"$" + item.Price.StringFixed(2),
			strconv.Itoa(item.Quantity),
			"$" + item.LineTotal().StringFixed(2),
		})
	}
	if err := renderTable(w, []string{"ID", "Title", "Price", "Qty", "Total"}, data); err != nil {
		return err
	}

	s := cart.Summarize(c)
	fmt.Fprintf(w, "Items:    %d\n", c.ItemCount)
	fmt.Fprintf(w, "Subtotal: $%s\n", s.Subtotal.StringFixed(2))
	fmt.Fprintf(w, "Tax:      $%s\n", s.Tax.StringFixed(2))
	fmt.Fprintf(w, "Shipping: $%s\n", s.Shipping.StringFixed(2))
	fmt.Fprintf(w, "Total:    %s\n", p.ok("$"+s.Total.StringFixed(2)))
	return nil
}

func writeUser(w io.Writer, u *model.User) error {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	_, err := fmt.Fprintf(w, "%s (@%s)\n%s\n", name, u.Username, u.Email)
	return err
}
