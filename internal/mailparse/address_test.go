package mailparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAddress(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"显示名加尖括号", `"A B" <x@y.com>`, "x@y.com", true},
		{"裸地址", "x@y.com", "x@y.com", true},
		{"垃圾输入", "garbage", "", false},
		{"空字符串", "", "", false},
		{"只有空白", "   \t", "", false},
		{"尖括号内有空格", "Name < x@y.com >", "x@y.com", true},
		{"尖括号优先于前面的裸地址", "x@y.com <z@w.org>", "z@w.org", true},
		{"多个收件人只取第一个", "<a@b.com>, <c@d.com>", "a@b.com", true},
		{"多个裸地址只取第一个", "a@b.com, c@d.com", "a@b.com", true},
		{"裸地址夹在文本中", "to: someone+tag@mail.example.org (work)", "someone+tag@mail.example.org", true},
		{"顶级域太短", "x@y.c", "", false},
		{"空尖括号回退到裸地址", "<> x@y.com", "x@y.com", true},
		{"未闭合尖括号回退到裸地址", "Name <x@y.com", "x@y.com", true},
		{"尖括号内非地址原样返回", "<undisclosed-recipients>", "undisclosed-recipients", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractAddress(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
