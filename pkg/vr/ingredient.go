package vr

import (
	"context"
	"fmt"
	"net/url"
)

const ingredientsBase = "/api/v1/ingredients/"

// Ingredient is one named chunk of config that releases get compiled
// from.
type Ingredient struct {
	Resource
}

// NewIngredient wraps an ingredient document.
func NewIngredient(c *Client, doc map[string]interface{}) *Ingredient {
	return &Ingredient{newResource(c, ingredientsBase, doc)}
}

// Ingredients lists ingredients matching params.
func Ingredients(ctx context.Context, c *Client, params url.Values) ([]*Ingredient, error) {
	docs, err := loadAll(ctx, c, ingredientsBase, params)
	if err != nil {
		return nil, err
	}
	ingredients := make([]*Ingredient, len(docs))
	for i, doc := range docs {
		ingredients[i] = NewIngredient(c, doc)
	}
	return ingredients, nil
}

// IngredientByName fetches the single ingredient with that name.
func IngredientByName(ctx context.Context, c *Client, name string) (*Ingredient, error) {
	ingredients, err := Ingredients(ctx, c, url.Values{"name": {name}})
	if err != nil {
		return nil, err
	}
	switch len(ingredients) {
	case 0:
		return nil, fmt.Errorf("no ingredient named %q", name)
	case 1:
		return ingredients[0], nil
	default:
		return nil, fmt.Errorf("%d ingredients named %q", len(ingredients), name)
	}
}

// FriendlyName renders the ingredient as "<name> (<id>)" for display.
func (i *Ingredient) FriendlyName() string {
	id, _ := i.GetInt("id")
	return fmt.Sprintf("%s (%d)", i.GetString("name"), id)
}
