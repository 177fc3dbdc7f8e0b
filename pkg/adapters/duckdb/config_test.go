package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettingStatements(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]string
		want    []string
	}{
		{
			name:    "nil options",
			options: nil,
			want:    []string{},
		},
		{
			name: "sorted by name",
			options: map[string]string{
				"threads":      "4",
				"memory_limit": "2GB",
			},
			want: []string{
				"SET memory_limit = '2GB'",
				"SET threads = '4'",
			},
		},
		{
			name: "quotes are escaped",
			options: map[string]string{
				"temp_directory": "/tmp/it's",
			},
			want: []string{"SET temp_directory = '/tmp/it''s'"},
		},
		{
			name: "non-identifier names are ignored",
			options: map[string]string{
				"threads; DROP TABLE x": "1",
				"Threads":               "1",
			},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, settingStatements(tt.options))
		})
	}
}
