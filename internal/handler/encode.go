package handler

import (
	"github.com/go-faster/jx"

	"github.com/xenking/catalog-cache/internal/controller"
	"github.com/xenking/catalog-cache/internal/domain/product"
)

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("price")
	e.Raw([]byte(p.Price.String()))
	e.FieldStart("imageUrl")
	e.Str(p.ImageURL)
	e.FieldStart("isFavorite")
	e.Bool(p.IsFavorite)
	e.ObjEnd()
}

func encodeProducts(e *jx.Encoder, products []product.Product) {
	e.ArrStart()
	for _, p := range products {
		encodeProduct(e, p)
	}
	e.ArrEnd()
}

func encodeCatalogSnapshot(s controller.CatalogSnapshot) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("products")
	encodeProducts(&e, s.Products)
	e.FieldStart("isLoading")
	e.Bool(s.IsLoading)
	e.FieldStart("searchQuery")
	e.Str(s.SearchQuery)
	e.FieldStart("error")
	if s.Err == "" {
		e.Null()
	} else {
		e.Str(s.Err)
	}
	e.FieldStart("noResultsFound")
	e.Bool(s.NoResultsFound)
	e.ObjEnd()
	return e.Bytes()
}

func encodeFavoritesSnapshot(s controller.FavoritesSnapshot) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("favoriteProducts")
	encodeProducts(&e, s.FavoriteProducts)
	e.FieldStart("isLoading")
	e.Bool(s.IsLoading)
	e.ObjEnd()
	return e.Bytes()
}

func encodeError(code int, msg string) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	return e.Bytes()
}
