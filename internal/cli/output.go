package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/domain"
)

// emit writes v as indented JSON when --json is set, otherwise calls human.
func (rt *runtime) emit(cmd *cobra.Command, v any, human func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if rt.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human(out)
	return nil
}

func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	_ = tw.Flush()
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func stockLabel(p domain.Product) string {
	if !p.IsInStock || p.Stock <= 0 {
		return "out of stock"
	}
	return fmt.Sprintf("%d", p.Stock)
}

func printProducts(w io.Writer, products []domain.Product) {
	table(w, "ID\tNAME\tPRICE\tSTOCK\tRATING", func(tw *tabwriter.Writer) {
		for _, p := range products {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f\n", p.ID, p.Name, money(p.EffectivePrice()), stockLabel(p), p.AverageRating)
		}
	})
}

func printProduct(w io.Writer, p domain.Product) {
	fmt.Fprintf(w, "%s (%s)\n", p.Name, p.ID)
	if p.Slug != "" {
		fmt.Fprintf(w, "  slug:     %s\n", p.Slug)
	}
	if p.Category != nil {
		fmt.Fprintf(w, "  category: %s\n", p.Category.Name)
	}
	if p.DiscountPercentage > 0 {
		fmt.Fprintf(w, "  price:    %s (was %s, -%.0f%%)\n", money(p.EffectivePrice()), money(p.Price), p.DiscountPercentage)
	} else {
		fmt.Fprintf(w, "  price:    %s\n", money(p.EffectivePrice()))
	}
	fmt.Fprintf(w, "  stock:    %s\n", stockLabel(p))
	fmt.Fprintf(w, "  rating:   %.1f (%d reviews)\n", p.AverageRating, p.ReviewCount)
	if p.Description != "" {
		fmt.Fprintf(w, "\n%s\n", p.Description)
	}
}

func printCart(w io.Writer, c domain.Cart, sum *domain.CartSummary) {
	if len(c.Items) == 0 {
		fmt.Fprintln(w, "Your cart is empty.")
		return
	}
	table(w, "PRODUCT\tNAME\tQTY\tUNIT\tTOTAL", func(tw *tabwriter.Writer) {
		for _, it := range c.Items {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", it.ProductID(), it.Product.Name, it.Quantity,
				money(it.Product.EffectivePrice()), money(it.LineTotal()))
		}
	})
	if sum != nil {
		fmt.Fprintf(w, "\nItems:    %d\n", sum.TotalItems)
		fmt.Fprintf(w, "Subtotal: %s\n", money(sum.TotalPrice))
		fmt.Fprintf(w, "Shipping: %s\n", money(sum.EstimatedShipping))
		fmt.Fprintf(w, "Tax:      %s\n", money(sum.Tax))
		fmt.Fprintf(w, "Total:    %s\n", money(sum.FinalTotal))
	}
}

func formatAddress(a domain.Address) string {
	return fmt.Sprintf("%s, %s, %s %s, %s", a.Street, a.City, a.State, a.PostalCode, a.Country)
}

func printAddresses(w io.Writer, addrs []domain.Address) {
	if len(addrs) == 0 {
		fmt.Fprintln(w, "No saved addresses.")
		return
	}
	table(w, "ID\tLABEL\tADDRESS\tDEFAULT", func(tw *tabwriter.Writer) {
		for _, a := range addrs {
			def := ""
			if a.IsDefault {
				def = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ID, a.Label, formatAddress(a), def)
		}
	})
}

func printOrders(w io.Writer, orders []domain.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "No orders yet.")
		return
	}
	table(w, "ID\tNUMBER\tSTATUS\tPAYMENT\tTOTAL\tPLACED", func(tw *tabwriter.Writer) {
		for _, o := range orders {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s/%s\t%s\t%s\n", o.ID, o.OrderNumber, o.Status,
				o.PaymentInfo.Method, o.PaymentInfo.Status, money(o.Total), o.CreatedAt.Format("2006-01-02 15:04"))
		}
	})
}

func printOrder(w io.Writer, o domain.Order) {
	fmt.Fprintf(w, "Order %s (%s)\n", o.OrderNumber, o.ID)
	fmt.Fprintf(w, "  status:   %s\n", o.Status)
	fmt.Fprintf(w, "  payment:  %s, %s\n", o.PaymentInfo.Method, o.PaymentInfo.Status)
	if o.TrackingNumber != "" {
		fmt.Fprintf(w, "  tracking: %s\n", o.TrackingNumber)
	}
	fmt.Fprintf(w, "  ship to:  %s\n", formatAddress(o.ShippingAddress))
	fmt.Fprintln(w)
	table(w, "PRODUCT\tQTY\tPRICE", func(tw *tabwriter.Writer) {
		for _, it := range o.Items {
			name := it.Product.Name
			if name == "" {
				name = it.Product.ID
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", name, it.Quantity, money(it.Price))
		}
	})
	fmt.Fprintf(w, "\nSubtotal: %s\nShipping: %s\nTax:      %s\nTotal:    %s\n",
		money(o.Subtotal), money(o.Shipping), money(o.Tax), money(o.Total))
	if notes := strings.TrimSpace(o.Notes); notes != "" {
		fmt.Fprintf(w, "\nNotes: %s\n", notes)
	}
}
