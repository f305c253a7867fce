package loader

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
)

// Column layout of a generated demand dataset. The header names use the
// underscore spelling the demand planning export produces.
var generatedHeader = []string{
	"id",
	"Период_планирования",
	"Покупатель_спроса",
	"Продукт_спроса",
	"Минимальный_заказ",
	"Максимальный_заказ",
	"Фактически_удовлетворённый_объём",
	"Процент_удовлетворения_спроса",
	"Выручка_за_единицу",
	"Общая_выручка_по_заказу",
	"Штрафы_за_недопоставку",
	"Штрафы_за_перепоставку",
	"Штрафы_на_партию",
}

var (
	districts = []string{"ПФО", "УФО", "ЦФО", "ЮФО"}
	cities    = []string{"Уфа", "Екатеринбург", "Москва", "Казань", "Ростов", "Краснодар"}
)

// GenerateFile writes a synthetic demand dataset of n rows to path, creating
// the parent directory if needed. The same seed reproduces the same file.
func GenerateFile(path string, n int, seed int64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("loader: create data dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("loader: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := writeRows(w, n, rand.New(rand.NewSource(seed))); err != nil {
		return fmt.Errorf("loader: generate %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("loader: flush %s: %w", path, err)
	}
	return nil
}

func writeRows(w *csv.Writer, n int, rng *rand.Rand) error {
	if err := w.Write(generatedHeader); err != nil {
		return err
	}

	periods := make([]string, 6)
	for i := range periods {
		periods[i] = fmt.Sprintf("p%d", i+1)
	}
	customers := make([]string, 20)
	for i := range customers {
		customers[i] = fmt.Sprintf("c%d Склад ТД [%s:%s]",
			2000+rng.Intn(1001),
			districts[rng.Intn(len(districts))],
			cities[rng.Intn(len(cities))])
	}
	// Ten rebar products lettered A..J plus five profile products A..E.
	var products []string
	for i := 0; i < 10; i++ {
		products = append(products, fmt.Sprintf("i%d Арматура %c", 6000000+rng.Intn(1000001), 'A'+i))
	}
	for i := 0; i < 5; i++ {
		products = append(products, fmt.Sprintf("i%d Профиль %c", 6000000+rng.Intn(1000001), 'A'+i))
	}

	for i := 0; i < n; i++ {
		row := []string{
			strconv.Itoa(i + 1),
			periods[rng.Intn(len(periods))],
			customers[rng.Intn(len(customers))],
			products[rng.Intn(len(products))],
			strconv.Itoa(10 + rng.Intn(91)),
			strconv.Itoa(100 + rng.Intn(401)),
			strconv.Itoa(50 + rng.Intn(351)),
			money(0.7 + rng.Float64()*0.3),
			money(100 + rng.Float64()*900),
			money(5000 + rng.Float64()*45000),
			penalty(rng, 0.3, 500),
			penalty(rng, 0.1, 200),
			penalty(rng, 0.05, 100),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// money renders a float with two decimal places.
func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// penalty is zero most of the time; with probability p it is a random value
// up to max.
func penalty(rng *rand.Rand, p, max float64) string {
	if rng.Float64() >= p {
		return "0.0"
	}
	return money(rng.Float64() * max)
}
