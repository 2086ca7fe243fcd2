// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMediaType(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		testCases := []struct {
			Name  string
			Value string
		}{
			{
				Name:  "if the value has no subtype",
				Value: "application",
			},
			{
				Name:  "if the type is a wildcard but the subtype is concrete",
				Value: "*/json",
			},
			{
				Name:  "if the value is garbage",
				Value: "not a media type",
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				_, err := ParseMediaType(testCase.Value)

				var merr InvalidMediaTypeError
				assert.ErrorAs(t, err, &merr)
			})
		}
	})

	t.Run("will parse to the full wildcard", func(t *testing.T) {
		t.Run("if the value is empty", func(t *testing.T) {
			mt, err := ParseMediaType("")
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, AnyMediaType, mt)
		})

		t.Run("if the value is a bare asterisk", func(t *testing.T) {
			mt, err := ParseMediaType("*")
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, AnyMediaType, mt)
		})
	})

	t.Run("will strip parameters", func(t *testing.T) {
		t.Run("if the value carries a charset", func(t *testing.T) {
			mt, err := ParseMediaType("application/json; charset=utf-8")
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, "application/json", mt.String())
		})
	})
}

func TestMediaTypeIncludes(t *testing.T) {
	testCases := []struct {
		Name     string
		Pattern  string
		Concrete string
		Includes bool
	}{
		{
			Name:     "should include an equal concrete type",
			Pattern:  "application/json",
			Concrete: "application/json",
			Includes: true,
		},
		{
			Name:     "should include any subtype under a subtype wildcard",
			Pattern:  "text/*",
			Concrete: "text/html",
			Includes: true,
		},
		{
			Name:     "should include anything under the full wildcard",
			Pattern:  "*",
			Concrete: "application/json",
			Includes: true,
		},
		{
			Name:     "should not include a different subtype",
			Pattern:  "application/json",
			Concrete: "application/xml",
			Includes: false,
		},
		{
			Name:     "should not include a different type under a subtype wildcard",
			Pattern:  "text/*",
			Concrete: "application/json",
			Includes: false,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			pattern, err := ParseMediaType(testCase.Pattern)
			if !assert.Nil(t, err) {
				return
			}
			concrete, err := ParseMediaType(testCase.Concrete)
			if !assert.Nil(t, err) {
				return
			}

			assert.Equal(t, testCase.Includes, pattern.Includes(concrete))
		})
	}
}

func TestMediaTypeCompatible(t *testing.T) {
	testCases := []struct {
		Name       string
		A          string
		B          string
		Compatible bool
	}{
		{
			Name:       "should be compatible when both sides are wildcards",
			A:          "*",
			B:          "*",
			Compatible: true,
		},
		{
			Name:       "should be compatible when one side is a wildcard",
			A:          "*",
			B:          "application/json",
			Compatible: true,
		},
		{
			Name:       "should be compatible when subtype wildcards overlap",
			A:          "text/*",
			B:          "text/html",
			Compatible: true,
		},
		{
			Name:       "should not be compatible for different concrete types",
			A:          "text/html",
			B:          "application/json",
			Compatible: false,
		},
		{
			Name:       "should not be compatible for subtype wildcards of different types",
			A:          "text/*",
			B:          "application/*",
			Compatible: false,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			a, err := ParseMediaType(testCase.A)
			if !assert.Nil(t, err) {
				return
			}
			b, err := ParseMediaType(testCase.B)
			if !assert.Nil(t, err) {
				return
			}

			assert.Equal(t, testCase.Compatible, a.Compatible(b))
			assert.Equal(t, testCase.Compatible, b.Compatible(a))
		})
	}
}
