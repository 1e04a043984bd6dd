// Command browse runs one catalog browse session against the product API and
// prints what a shopper would see after scrolling through a number of pages.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bytedance/sonic"
	"github.com/matst80/slask-catalog/pkg/catalog"
	"github.com/matst80/slask-catalog/pkg/client"
	"github.com/matst80/slask-catalog/pkg/config"
	"github.com/matst80/slask-catalog/pkg/loader"
	"github.com/matst80/slask-catalog/pkg/refine"
	"github.com/matst80/slask-catalog/pkg/resolve"
	"github.com/matst80/slask-catalog/pkg/types"
	"github.com/sirupsen/logrus"
)

var (
	apiUrl       = flag.String("api", "", "catalog api url, defaults to CATALOG_API_URL")
	path         = flag.String("path", catalog.BasePath, "storefront url to browse, e.g. /products/rings?q=gold")
	pages        = flag.Int("pages", 1, "number of pages to load")
	material     = flag.String("material", "", "only show this material")
	materialType = flag.String("type", "", "only show this material type")
	sortOrder    = flag.String("sort", "", "sort order (featured, new, bestseller, price-asc, price-desc, rating)")
	inStock      = flag.Bool("instock", false, "only show items in stock")
	minRating    = flag.Float64("min-rating", 0, "minimum rating")
	minPrice     = flag.Float64("min-price", -1, "minimum price, negative for no bound")
	maxPrice     = flag.Float64("max-price", -1, "maximum price, negative for no bound")
	asJson       = flag.Bool("json", false, "print the view model as json")
	timeout      = flag.Duration("timeout", 30*time.Second, "overall timeout")
)

func priceBound(v float64) *float64 {
	if v < 0 {
		return nil
	}
	return &v
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("could not load config: %v", err)
	}
	cfg.ConfigureLogging()
	if *apiUrl != "" {
		cfg.CatalogApiUrl = *apiUrl
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	api := client.New(cfg.CatalogApiUrl, cfg.HttpTimeout)
	taxonomy := client.NewCachedTaxonomy(api, client.NewMemoryCache(), cfg.CategoryCacheTtl)
	opts := catalog.DefaultOptions()
	opts.PageSize = cfg.PageSize
	engine := catalog.New(resolve.New(taxonomy, taxonomy), loader.NewFetcher(api), opts)
	defer engine.Close()

	if err := engine.Navigate(ctx, *path); err != nil {
		logrus.Fatalf("could not browse %s: %v", *path, err)
	}
	for i := 1; i < *pages && engine.Snapshot().HasMore; i++ {
		if err := engine.RequestMore(ctx); err != nil {
			logrus.Warnf("stopped after page %d: %v", i, err)
			break
		}
	}

	if *sortOrder != "" {
		engine.SetSort(types.ParseSortOrder(*sortOrder))
	}
	if *material != "" {
		engine.SetMaterial(*material)
	}
	if *materialType != "" {
		engine.SetMaterialType(*materialType)
	}
	if *inStock {
		engine.SetInStockOnly(true)
	}
	if *minRating > 0 {
		engine.SetMinRating(*minRating)
	}
	if *minPrice >= 0 || *maxPrice >= 0 {
		engine.SetPriceRange(priceBound(*minPrice), priceBound(*maxPrice), refine.HandleMin)
	}

	view := engine.Snapshot()
	if *asJson {
		if err := sonic.ConfigDefault.NewEncoder(os.Stdout).Encode(view); err != nil {
			logrus.Fatalf("could not encode view: %v", err)
		}
		return
	}
	printView(view)
}

func printView(view catalog.ViewModel) {
	if view.NotFound {
		fmt.Printf("%s: not found\n", view.Url)
		return
	}
	if view.Error != "" {
		fmt.Printf("%s: %s\n", view.Url, view.Error)
		return
	}
	total := "?"
	if view.TotalKnown {
		total = fmt.Sprint(view.Total)
	}
	fmt.Printf("%s: showing %d of %d loaded, %s total, price %.2f-%.2f\n",
		view.Url, len(view.VisibleItems), view.Loaded, total, view.PriceBounds.Min, view.PriceBounds.Max)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMATERIAL\tPRICE\tRATING\tSTOCK")
	for _, p := range view.VisibleItems {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.1f\t%d\n",
			p.Id, p.Name, strings.TrimSpace(p.Material+" "+p.MaterialType), p.Price, p.Rating, p.Stock)
	}
	w.Flush()

	if len(view.Materials) > 0 {
		labels := make([]string, 0, len(view.Materials))
		for _, o := range view.Materials {
			labels = append(labels, fmt.Sprintf("%s (%d)", o.Label, o.Count))
		}
		fmt.Printf("materials: %s\n", strings.Join(labels, ", "))
	}
	if view.HasMore {
		fmt.Println("more results available")
	}
}
