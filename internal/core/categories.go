package core

import "slices"

// Category is a selectable category with its display label.
type Category struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var expenseCategories = []Category{
	{"alimentacion", "Alimentación"},
	{"transporte", "Transporte"},
	{"vivienda", "Vivienda"},
	{"ocio", "Ocio"},
	{"salud", "Salud"},
	{"educacion", "Educación"},
	{"servicios", "Servicios"},
	{"otros", "Otros"},
}

var incomeCategories = []Category{
	{"salario", "Salario"},
	{"freelance", "Freelance"},
	{"inversion", "Inversión"},
	{"regalo", "Regalo"},
	{"venta", "Venta"},
	{"reembolso", "Reembolso"},
	{"otros", "Otros"},
}

// CategoriesFor returns a copy of the fixed category list for a transaction type.
func CategoriesFor(t TransactionType) []Category {
	switch t {
	case Expense:
		return slices.Clone(expenseCategories)
	case Income:
		return slices.Clone(incomeCategories)
	}
	return nil
}

// IsValidCategory reports whether category belongs to t's list.
func IsValidCategory(t TransactionType, category string) bool {
	var list []Category
	switch t {
	case Expense:
		list = expenseCategories
	case Income:
		list = incomeCategories
	default:
		return false
	}
	return slices.ContainsFunc(list, func(c Category) bool { return c.Value == category })
}

// CategoryLabel returns the display label of category, or the value itself when unknown.
func CategoryLabel(t TransactionType, category string) string {
	for _, c := range CategoriesFor(t) {
		if c.Value == category {
			return c.Label
		}
	}
	return category
}
