package parser_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/postpulse-cli/internal/parser"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestParseFileCSV(t *testing.T) {
	p := writeFile(t, "posts.csv", "\ufeff数据ID,内容形式,7天阅读/播放\n"+
		"p1,图文,\"1,200\"\n"+
		",,\n"+
		"p2,视频\n")
	tbl, err := parser.ParseFile(p, parser.Options{})
	require.NoError(t, err)
	assert.Equal(t, "posts.csv", tbl.Name)
	assert.Equal(t, "数据ID", tbl.Header[0], "BOM stripped")
	require.Len(t, tbl.Rows, 2, "blank row skipped")
	assert.Equal(t, "1,200", tbl.Rows[0][2])
	assert.Equal(t, []string{"p2", "视频"}, tbl.Rows[1], "short row kept as-is")
}

func TestParseFileTSVAndDelimiter(t *testing.T) {
	p := writeFile(t, "posts.tsv", "data_id\tread_7d\na\t3\n")
	tbl, err := parser.ParseFile(p, parser.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"data_id", "read_7d"}, tbl.Header)
	assert.Equal(t, [][]string{{"a", "3"}}, tbl.Rows)

	p = writeFile(t, "semi.csv", "data_id;read_7d\na;1,5\n")
	tbl, err = parser.ParseFile(p, parser.Options{Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "1,5"}}, tbl.Rows)
}

func TestParseFileEmptyAndUnsupported(t *testing.T) {
	_, err := parser.ParseFile(writeFile(t, "empty.csv", ""), parser.Options{})
	assert.ErrorIs(t, err, parser.ErrEmpty)

	_, err = parser.ParseFile(writeFile(t, "notes.txt", "hello"), parser.Options{})
	assert.ErrorIs(t, err, parser.ErrUnsupported)

	assert.False(t, parser.Supported("x.docx"))
	assert.True(t, parser.Supported("X.CSV"))
}
