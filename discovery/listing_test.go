package discovery

import (
	"testing"
	"time"

	"github.com/pevans/govdigest/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func listConfig(t *testing.T, modify func(*scraper.ListConfig)) scraper.ListConfig {
	t.Helper()
	a := scraper.Adapter{Name: "test", EntryURLs: []string{"http://example.com"}}
	if modify != nil {
		modify(&a.List)
	}
	require.NoError(t, a.ApplyDefaults())
	return a.List
}

// TestParseList_Rows verifies default row parsing with relative links
func TestParseList_Rows(t *testing.T) {
	markup := `<html><body>
		<ul class="nav"><li><a href="/">首页</a></li></ul>
		<ul class="list">
			<li><a href="./202405/t20240520_1.html" title="全省林长制工作会议召开">全省林长制工作会议...</a><span>2024-05-20</span></li>
			<li><a href="../other/t20240518_2.html">春季造林 进展顺利</a><span>2024-05-18</span></li>
			<li><a href="javascript:void(0)">无效</a><span>2024-05-18</span></li>
		</ul>
	</body></html>`

	items, err := ParseList(markup, "https://lcj.shanxi.gov.cn/zxyw/xxkb/index.html", listConfig(t, nil))

	require.NoError(t, err)
	require.Len(t, items, 2, "rows without a date or with a non-http link are skipped")

	assert.Equal(t, "https://lcj.shanxi.gov.cn/zxyw/xxkb/202405/t20240520_1.html", items[0].URL)
	assert.Equal(t, day(2024, 5, 20), items[0].Date)
	assert.Equal(t, "全省林长制工作会议召开", items[0].Title, "title attribute is preferred")

	assert.Equal(t, "https://lcj.shanxi.gov.cn/zxyw/other/t20240518_2.html", items[1].URL)
	assert.Equal(t, "春季造林 进展顺利", items[1].Title)
}

// TestParseList_ContainerAndDateSelector verifies scoped rows with a custom layout
func TestParseList_ContainerAndDateSelector(t *testing.T) {
	markup := `<html><body>
		<ul class="sidebar"><li><a href="/x">侧栏</a> 2024/05/19</li></ul>
		<ul class="ui-list-news heading-square">
			<li><a href="/xinxi/1.html">藏区林业新闻</a><span class="news-date">2024/05/19</span></li>
			<li><a href="/xinxi/2.html">旧闻</a><span class="news-date">2024/04/01</span></li>
		</ul>
	</body></html>`

	cfg := listConfig(t, func(l *scraper.ListConfig) {
		l.Container = "ul.ui-list-news.heading-square"
		l.DateSelectors = []string{"span.news-date"}
		l.DatePattern = `\d{4}/\d{2}/\d{2}`
		l.DateLayout = "2006/01/02"
	})

	items, err := ParseList(markup, "http://www.xzly.gov.cn/xinxi/jiguan1?page=1", cfg)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "http://www.xzly.gov.cn/xinxi/1.html", items[0].URL)
	assert.Equal(t, day(2024, 5, 19), items[0].Date)
	assert.Equal(t, day(2024, 4, 1), items[1].Date)
}

// TestParseList_MissingContainer verifies an absent container is not an error
func TestParseList_MissingContainer(t *testing.T) {
	cfg := listConfig(t, func(l *scraper.ListConfig) {
		l.Container = "div.does-not-exist"
	})

	items, err := ParseList(`<html><body><li><a href="/a">a</a>2024-05-20</li></body></html>`, "http://example.com/", cfg)

	require.NoError(t, err)
	assert.Empty(t, items)
}

// TestParseList_XMLRecords verifies CDATA records in a data island
func TestParseList_XMLRecords(t *testing.T) {
	markup := `<html><body>
		<div id="list"><script type="text/xml"><datastore><nextgroup><![CDATA[<a href="/next">下一页</a>]]></nextgroup><recordset>
		<record><![CDATA[<li><a href="/art/2024/5/20/art_7197_1.html" title="江苏林业动态">江苏林业动态</a><span class="bt-data-time">[2024-05-20]</span></li>]]></record>
		<record><![CDATA[<li><a href="/art/2024/5/2/art_7197_2.html">较早动态</a><span class="bt-data-time">[2024-05-02]</span></li>]]></record>
		</recordset></datastore></script></div>
	</body></html>`

	cfg := listConfig(t, func(l *scraper.ListConfig) {
		l.Strategy = scraper.ListXMLRecords
		l.DateSelectors = []string{"span.bt-data-time"}
		l.DatePattern = `\[(\d{4}-\d{2}-\d{2})\]`
	})

	items, err := ParseList(markup, "https://lyj.jiangsu.gov.cn/col/col7197/index.html?uid=209921&pageNum=1", cfg)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "https://lyj.jiangsu.gov.cn/art/2024/5/20/art_7197_1.html", items[0].URL)
	assert.Equal(t, day(2024, 5, 20), items[0].Date, "first capture group is used")
	assert.Equal(t, "江苏林业动态", items[0].Title)
	assert.Equal(t, day(2024, 5, 2), items[1].Date)
}

// TestParseList_XMLTableRecords verifies table-row records and selector fallback
func TestParseList_XMLTableRecords(t *testing.T) {
	markup := `<html><body><script type="text/xml"><recordset>
		<record><![CDATA[<tr><td><a href="http://lyj.zj.gov.cn/art/2024/5/20/art_1.html">浙江新闻</a></td><td class="hui14">2024-05-20</td></tr>]]></record>
		<record><![CDATA[<tr><td><a href="/art/2024/5/19/art_2.html">第二条</a></td><td></td><td>2024-05-19</td></tr>]]></record>
	</recordset></script></body></html>`

	cfg := listConfig(t, func(l *scraper.ListConfig) {
		l.Strategy = scraper.ListXMLRecords
		l.DateSelectors = []string{"td.hui14", "td:nth-of-type(3)"}
	})

	items, err := ParseList(markup, "http://lyj.zj.gov.cn/col/col1276365/index.html", cfg)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, day(2024, 5, 20), items[0].Date)
	assert.Equal(t, "http://lyj.zj.gov.cn/art/2024/5/19/art_2.html", items[1].URL)
	assert.Equal(t, day(2024, 5, 19), items[1].Date)
}

// TestParseList_BareXML verifies data proxy responses without a script wrapper
func TestParseList_BareXML(t *testing.T) {
	markup := `<datastore><recordset><record><![CDATA[<li><a href="/a.html">A</a> 2024-05-20</li>]]></record></recordset></datastore>`

	cfg := listConfig(t, func(l *scraper.ListConfig) {
		l.Strategy = scraper.ListXMLRecords
	})

	items, err := ParseList(markup, "http://example.com/list", cfg)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "http://example.com/a.html", items[0].URL)
}

// TestParseList_Feed verifies RSS list pages
func TestParseList_Feed(t *testing.T) {
	markup := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
	<title>林草要闻</title>
	<item><title>湿地保护</title><link>/news/1.html</link><pubDate>Mon, 20 May 2024 08:00:00 +0800</pubDate></item>
	<item><title>无日期</title><link>/news/2.html</link></item>
</channel></rss>`

	cfg := listConfig(t, func(l *scraper.ListConfig) {
		l.Strategy = scraper.ListFeed
	})

	items, err := ParseList(markup, "http://example.com/rss.xml", cfg)

	require.NoError(t, err)
	require.Len(t, items, 1, "items without a date are skipped")
	assert.Equal(t, "http://example.com/news/1.html", items[0].URL)
	assert.Equal(t, "湿地保护", items[0].Title)
	assert.Equal(t, 2024, items[0].Date.Year())
}

// TestParseList_FeedInvalid verifies malformed feeds report an error
func TestParseList_FeedInvalid(t *testing.T) {
	cfg := listConfig(t, func(l *scraper.ListConfig) {
		l.Strategy = scraper.ListFeed
	})

	_, err := ParseList("not a feed", "http://example.com/rss.xml", cfg)

	assert.Error(t, err)
}
