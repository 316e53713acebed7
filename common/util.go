package common

import (
	"encoding"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

func textUnmarshalHook(f reflect.Type, t reflect.Type, data any) (any, error) {
	if !reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return data, nil
	}

	str, ok := data.(string)
	if !ok {
		return data, nil
	}

	v := reflect.New(t)
	if err := v.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(str)); err != nil {
		return nil, err
	}

	return v.Elem().Interface(), nil
}

// WeakDecodeMap decodes a loosely typed map (config sections, API payload
// objects) into output. Numbers and strings convert into each other, and
// string values are fed to encoding.TextUnmarshaler fields.
func WeakDecodeMap(input, output any) error {
	config := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           output,
		WeaklyTypedInput: true,
		DecodeHook:       textUnmarshalHook,
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}
