package boltstore

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-cache/internal/domain/product"
)

// encodeProduct serializes a product record into the stored JSON form.
// Price is kept as a decimal string to avoid float round-tripping.
func encodeProduct(p product.Product) []byte {
	var e jx.Encoder
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
	e.Str(p.Price.String())
	e.FieldStart("image_url")
	e.Str(p.ImageURL)
	e.FieldStart("is_favorite")
	e.Bool(p.IsFavorite)
	e.ObjEnd()
	return e.Bytes()
}

func decodeProduct(data []byte) (product.Product, error) {
	var p product.Product
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "price":
			var raw string
			if raw, err = d.Str(); err != nil {
				return err
			}
			if p.Price, err = decimal.NewFromString(raw); err != nil {
				return errors.Wrapf(err, "price %q", raw)
			}
		case "image_url":
			p.ImageURL, err = d.Str()
		case "is_favorite":
			p.IsFavorite, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return product.Product{}, errors.Wrap(err, "decode product record")
	}
	return p, nil
}
