package attachment

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/fetc/proposals/core"
)

var (
	kindTag  = "attachmentkind"
	kindText = "unknown attachment kind"

	ownerTag  = "attachmentowner"
	ownerText = "this kind of document cannot be attached here"
)

// InitValidators registers the attachment validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(kindTag, kindValidation)
	core.RegisterCustomTranslation(validate, translator, kindTag, kindText)

	validate.RegisterStructValidation(newAttachmentStructValidation, NewAttachment{})
	core.RegisterCustomTranslation(validate, translator, ownerTag, ownerText)
}

func kindValidation(fl validator.FieldLevel) bool {
	_, ok := Lookup(Kind(fl.Field().String()))
	return ok
}

// newAttachmentStructValidation checks the kind can be attached to the owner type.
func newAttachmentStructValidation(sl validator.StructLevel) {
	na, ok := sl.Current().Interface().(NewAttachment)
	if !ok {
		return
	}
	info, known := Lookup(na.Kind)
	if !known || na.Owner.ID == "" {
		return
	}
	if info.AttachTo != na.Owner.Type {
		sl.ReportError(na.Owner, "owner", "Owner", ownerTag, "")
	}
}
