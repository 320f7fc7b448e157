// Package catalog holds the closed province, asset and document-class enums
// together with the names and URL tokens used to search for and recognise them.
package catalog

// Province is a supported provincial jurisdiction.
type Province struct {
	Code     string
	Name     string   // short Chinese name, e.g. 广东
	FullName string   // e.g. 广东省
	English  string   // e.g. Guangdong
	Aliases  []string // other accepted spellings
	Tokens   []string // lowercase fragments that identify the province in a URL
	Domains  []string // known provincial department domains, without leading dots
}

// Asset is a generation or storage asset type.
type Asset struct {
	Code     string
	Name     string
	English  string
	Aliases  []string
	Synonyms []string // search synonyms, most specific last
	Tokens   []string
}

// DocClass is the regulatory category axis orthogonal to province and asset.
type DocClass struct {
	Code     string
	Name     string
	Synonyms []string
	Tokens   []string
}

// DefaultDocClass is used when a request leaves the document class empty.
const DefaultDocClass = "grid"

var provinces = []Province{
	{
		Code:     "gd",
		Name:     "广东",
		FullName: "广东省",
		English:  "Guangdong",
		Aliases:  []string{"粤", "guangdong province"},
		Tokens:   []string{"gd", "guangdong"},
		Domains:  []string{"gd.gov.cn", "drc.gd.gov.cn", "gdei.gov.cn", "csg.cn", "gd.csg.cn"},
	},
	{
		Code:     "sd",
		Name:     "山东",
		FullName: "山东省",
		English:  "Shandong",
		Aliases:  []string{"鲁", "shandong province"},
		Tokens:   []string{"sd", "shandong"},
		Domains:  []string{"shandong.gov.cn", "nyj.shandong.gov.cn", "fgw.shandong.gov.cn", "sd.sgcc.com.cn"},
	},
	{
		Code:     "nm",
		Name:     "内蒙古",
		FullName: "内蒙古自治区",
		English:  "Inner Mongolia",
		Aliases:  []string{"内蒙", "蒙", "nei mongol", "innermongolia"},
		Tokens:   []string{"nm", "nmg", "neimenggu", "nmgov"},
		Domains:  []string{"nmg.gov.cn", "nyj.nmg.gov.cn", "fgw.nmg.gov.cn", "impc.com.cn"},
	},
}

var assets = []Asset{
	{
		Code:     "solar",
		Name:     "光伏",
		English:  "Solar",
		Aliases:  []string{"光伏发电", "太阳能", "pv", "photovoltaic"},
		Synonyms: []string{"光伏", "光伏发电", "分布式光伏", "太阳能发电"},
		Tokens:   []string{"solar", "pv", "guangfu", "gf", "光伏", "太阳能"},
	},
	{
		Code:     "wind",
		Name:     "风电",
		English:  "Wind",
		Aliases:  []string{"风力发电", "风能", "wind power"},
		Synonyms: []string{"风电", "风力发电", "海上风电", "陆上风电"},
		Tokens:   []string{"wind", "fengdian", "fd", "风电", "风力"},
	},
	{
		Code:     "storage",
		Name:     "储能",
		English:  "Energy Storage",
		Aliases:  []string{"新型储能", "电化学储能", "energy storage", "ess"},
		Synonyms: []string{"储能", "新型储能", "电化学储能", "储能电站"},
		Tokens:   []string{"storage", "chuneng", "ess", "储能"},
	},
}

var docClasses = []DocClass{
	{
		Code:     "grid",
		Name:     "并网",
		Synonyms: []string{"并网", "接入电网", "并网验收", "电网接入"},
		Tokens:   []string{"grid", "bingwang", "bw", "jieru", "并网", "接入"},
	},
	{
		Code:     "permit",
		Name:     "核准备案",
		Synonyms: []string{"核准", "备案", "项目核准", "项目备案"},
		Tokens:   []string{"permit", "hezhun", "beian", "xmba", "核准", "备案"},
	},
	{
		Code:     "market",
		Name:     "电力市场",
		Synonyms: []string{"电力市场", "电力交易", "市场化交易", "电价"},
		Tokens:   []string{"market", "jiaoyi", "trade", "dljy", "交易", "电价", "市场"},
	},
}

// Provinces returns every supported province in a stable order.
func Provinces() []Province { return provinces }

// Assets returns every supported asset in a stable order.
func Assets() []Asset { return assets }

// DocClasses returns every supported document class in a stable order.
func DocClasses() []DocClass { return docClasses }

// LookupProvince returns the province with the given internal code.
func LookupProvince(code string) (Province, bool) {
	for _, p := range provinces {
		if p.Code == code {
			return p, true
		}
	}
	return Province{}, false
}

// LookupAsset returns the asset with the given internal code.
func LookupAsset(code string) (Asset, bool) {
	for _, a := range assets {
		if a.Code == code {
			return a, true
		}
	}
	return Asset{}, false
}

// LookupDocClass returns the document class with the given internal code.
func LookupDocClass(code string) (DocClass, bool) {
	for _, c := range docClasses {
		if c.Code == code {
			return c, true
		}
	}
	return DocClass{}, false
}

// ProvinceCodes lists every province code.
func ProvinceCodes() []string {
	codes := make([]string, len(provinces))
	for i, p := range provinces {
		codes[i] = p.Code
	}
	return codes
}

// AssetCodes lists every asset code.
func AssetCodes() []string {
	codes := make([]string, len(assets))
	for i, a := range assets {
		codes[i] = a.Code
	}
	return codes
}

// ProvinceName returns the Chinese full name for a code, or the code itself if unknown.
func ProvinceName(code string) string {
	if p, ok := LookupProvince(code); ok {
		return p.FullName
	}
	return code
}

// AssetName returns the Chinese name for a code, or the code itself if unknown.
func AssetName(code string) string {
	if a, ok := LookupAsset(code); ok {
		return a.Name
	}
	return code
}

// DocClassName returns the Chinese name for a code, or the code itself if unknown.
func DocClassName(code string) string {
	if c, ok := LookupDocClass(code); ok {
		return c.Name
	}
	return code
}
