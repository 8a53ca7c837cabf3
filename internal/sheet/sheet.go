// Package sheet 读取查询表格（xlsx/csv）并把 BatchReport 写成 xlsx。
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/John-Robertt/ratingscout/internal/domain"
)

type Mode string

const (
	ModeMovie  Mode = "movie"
	ModeSeries Mode = "series"
)

// 输入表头（大小写不敏感）。
const (
	ColMovieName     = "Movie_name"
	ColDirectorName  = "Director_name"
	ColSeasonName    = "Season_name"
	ColSeasonNumber  = "Season_number"
	ColEpisodeName   = "Episode_name"
	ColEpisodeNumber = "Episode_number"
)

// Row 是输入表格中的一行查询。
type Row struct {
	Index    int // 数据行顺序，从 0 开始（不含表头）
	Title    string
	Season   string
	Episode  string
	Director string
}

var firstNumberRE = regexp.MustCompile(`[0-9]+`)

// Query 把表格行转换为查询；剧集行能解析出集号时带上 EpisodeContext。
func (r Row) Query() domain.Query {
	ep := firstInt(r.Episode)
	if ep <= 0 {
		return domain.NewQuery(r.Title, r.Director, nil)
	}
	return domain.NewQuery(r.Title, r.Director, &domain.EpisodeContext{Season: firstInt(r.Season), Episode: ep})
}

// ReadQueries 按扩展名读取 .xlsx 或 .csv。
func ReadQueries(path string) ([]Row, Mode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	return Read(f, filepath.Ext(path))
}

// Read 从 reader 读取查询；ext 为 ".xlsx" 或 ".csv"。
func Read(r io.Reader, ext string) ([]Row, Mode, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(ext) {
	case ".xlsx":
		records, err = readXLSX(r)
	case ".csv":
		records, err = csv.NewReader(r).ReadAll()
	default:
		return nil, "", fmt.Errorf("不支持的表格类型：%q（只支持 .xlsx/.csv）", ext)
	}
	if err != nil {
		return nil, "", err
	}
	return parseRecords(records)
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("打开 xlsx 失败：%w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx 中没有工作表")
	}
	return f.GetRows(sheets[0])
}

func parseRecords(records [][]string) ([]Row, Mode, error) {
	if len(records) == 0 {
		return nil, "", errors.New("表格为空（缺少表头）")
	}
	cols := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		h = strings.ToLower(strings.TrimSpace(h))
		if _, ok := cols[h]; !ok && h != "" {
			cols[h] = i
		}
	}
	col := func(name string) (int, bool) {
		i, ok := cols[strings.ToLower(name)]
		return i, ok
	}

	dirIdx, ok := col(ColDirectorName)
	if !ok {
		return nil, "", fmt.Errorf("缺少列 %s", ColDirectorName)
	}

	var (
		mode     Mode
		titleIdx int
		hasTitle bool
	)
	seasonIdx, episodeIdx := -1, -1
	if titleIdx, hasTitle = col(ColMovieName); hasTitle {
		mode = ModeMovie
	} else if titleIdx, hasTitle = col(ColSeasonName); hasTitle {
		mode = ModeSeries
		if i, ok := col(ColSeasonNumber); ok {
			seasonIdx = i
		}
		if i, ok := col(ColEpisodeNumber); ok {
			episodeIdx = i
		} else if i, ok := col(ColEpisodeName); ok {
			episodeIdx = i
		} else {
			return nil, "", fmt.Errorf("剧集表格缺少列 %s 或 %s", ColEpisodeNumber, ColEpisodeName)
		}
	} else {
		return nil, "", fmt.Errorf("缺少列 %s 或 %s", ColMovieName, ColSeasonName)
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		rows = append(rows, Row{
			Index:    len(rows),
			Title:    cell(rec, titleIdx),
			Season:   cell(rec, seasonIdx),
			Episode:  cell(rec, episodeIdx),
			Director: cell(rec, dirIdx),
		})
	}
	return rows, mode, nil
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func firstInt(s string) int {
	m := firstNumberRE.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// 输出列（与输入列名保持一致，便于回填原表）。
var (
	movieHeader  = []string{ColMovieName, ColDirectorName}
	seriesHeader = []string{ColSeasonName, ColSeasonNumber, "Episode", ColDirectorName}
	detailHeader = []string{
		"classification", "rating_code", "release_year", "run_time",
		"label_issued_by", "label_issued_on", "comment", "source_url",
	}
)

const reportSheet = "Sheet1"

// WriteReport 把报告写成 xlsx（每个输入行恰好一行）。
func WriteReport(w io.Writer, report domain.BatchReport) error {
	f := excelize.NewFile()
	defer f.Close()

	series := Mode(report.Mode) == ModeSeries
	header := movieHeader
	if series {
		header = seriesHeader
	}
	header = append(append([]string{}, header...), detailHeader...)

	if err := setRow(f, 1, toAny(header)); err != nil {
		return err
	}
	for i, row := range report.Rows {
		d := row.Outcome.Details
		var vals []string
		if series {
			vals = []string{row.Title, row.Season, row.Episode, row.Director}
		} else {
			vals = []string{row.Title, row.Director}
		}
		vals = append(vals,
			d.Classification, d.RatingCode, d.ReleaseYear, d.RunTime,
			d.LabelIssuedBy, d.LabelIssuedOn, row.Comment(), orNA(row.Outcome.SourceURL),
		)
		if err := setRow(f, i+2, toAny(vals)); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// EncodeReport 与 WriteReport 相同，但返回字节（用于原子写文件）。
func EncodeReport(report domain.BatchReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, report); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, rowIdx int, vals []any) error {
	cellName, err := excelize.CoordinatesToCellName(1, rowIdx)
	if err != nil {
		return err
	}
	return f.SetSheetRow(reportSheet, cellName, &vals)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return domain.NA
	}
	return s
}
