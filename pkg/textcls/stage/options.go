package stage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"

	"github.com/cognicore/textcls/pkg/textcls/internalerr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FileOptions is the input/output surface shared by single-input stages.
type FileOptions struct {
	InputFile  string `yaml:"input_file" validate:"required"`
	OutputFile string `yaml:"output_file" validate:"required"`
	Overwrite  bool   `yaml:"overwrite"`
}

// BindFlags registers the file flags, using the current values as defaults.
func (o *FileOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.InputFile, "input-file", "i", o.InputFile, "input file")
	fs.StringVarP(&o.OutputFile, "output-file", "o", o.OutputFile, "output file")
	fs.BoolVar(&o.Overwrite, "overwrite", o.Overwrite, "replace existing output files")
}

// Validate checks opts against its validate tags. Field errors are joined
// into a single error wrapping internalerr.ErrInvalidConfig.
func Validate(opts any) error {
	err := validate.Struct(opts)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", internalerr.ErrInvalidConfig, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	name := fe.Namespace()
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "required_without":
		return fmt.Sprintf("%s is required when %s is empty", name, fe.Param())
	case "required_if":
		return fmt.Sprintf("%s is required when %s", name, strings.Replace(fe.Param(), " ", " is ", 1))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", name, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", name, fe.Param())
	case "url":
		return name + " must be a URL"
	}
	return fmt.Sprintf("%s failed %s", name, fe.Tag())
}
