package language

// entry describes one canonical language. site is the opensubtitles.org sublanguageid.
type entry struct {
	code    string
	name    string
	alpha3  string
	site    string
	aliases []string
}

var table = []entry{
	{code: "en", name: "English", alpha3: "eng", site: "eng", aliases: []string{"en-us", "en-gb", "gb", "us", "anglais", "englisch", "ingles", "angol"}},
	{code: "fr", name: "French", alpha3: "fra", site: "fre", aliases: []string{"fre", "français", "francais", "fr-fr", "fr-ca", "francia"}},
	{code: "de", name: "German", alpha3: "deu", site: "ger", aliases: []string{"ger", "deutsch", "allemand", "aleman", "nemet"}},
	{code: "es", name: "Spanish", alpha3: "spa", site: "spa", aliases: []string{"español", "espanol", "castellano", "es-es", "spanyol"}},
	{code: "es-MX", name: "Spanish (Latin America)", alpha3: "spl", site: "spl", aliases: []string{"ea", "es-419", "es-la", "latino", "spanish (la)", "spanish latin american"}},
	{code: "it", name: "Italian", alpha3: "ita", site: "ita", aliases: []string{"italiano", "olasz"}},
	{code: "pt", name: "Portuguese", alpha3: "por", site: "por", aliases: []string{"português", "portugues", "pt-pt", "portugal", "portugal portuguese"}},
	{code: "pt-BR", name: "Portuguese (Brazil)", alpha3: "pob", site: "pob", aliases: []string{"pb", "pt-br", "brazilian", "brazilian portuguese", "português (brasil)", "portuguese-br"}},
	{code: "ru", name: "Russian", alpha3: "rus", site: "rus", aliases: []string{"русский", "russkiy", "orosz"}},
	{code: "uk", name: "Ukrainian", alpha3: "ukr", site: "ukr", aliases: []string{"українська", "ukrainska"}},
	{code: "pl", name: "Polish", alpha3: "pol", site: "pol", aliases: []string{"polski", "lengyel"}},
	{code: "cs", name: "Czech", alpha3: "ces", site: "cze", aliases: []string{"cze", "čeština", "cestina"}},
	{code: "sk", name: "Slovak", alpha3: "slk", site: "slo", aliases: []string{"slo", "slovenčina", "slovencina"}},
	{code: "sl", name: "Slovenian", alpha3: "slv", site: "slv", aliases: []string{"slovene", "slovenščina", "slovenscina"}},
	{code: "hr", name: "Croatian", alpha3: "hrv", site: "hrv", aliases: []string{"hrvatski"}},
	{code: "sr", name: "Serbian", alpha3: "srp", site: "scc", aliases: []string{"scc", "srpski", "српски"}},
	{code: "bs", name: "Bosnian", alpha3: "bos", site: "bos", aliases: []string{"bosanski"}},
	{code: "mk", name: "Macedonian", alpha3: "mkd", site: "mac", aliases: []string{"mac", "македонски"}},
	{code: "bg", name: "Bulgarian", alpha3: "bul", site: "bul", aliases: []string{"български", "balgarski"}},
	{code: "ro", name: "Romanian", alpha3: "ron", site: "rum", aliases: []string{"rum", "română", "romana"}},
	{code: "hu", name: "Hungarian", alpha3: "hun", site: "hun", aliases: []string{"magyar"}},
	{code: "el", name: "Greek", alpha3: "ell", site: "ell", aliases: []string{"gre", "ελληνικά", "ellinika"}},
	{code: "tr", name: "Turkish", alpha3: "tur", site: "tur", aliases: []string{"türkçe", "turkce"}},
	{code: "nl", name: "Dutch", alpha3: "nld", site: "dut", aliases: []string{"dut", "nederlands", "flemish"}},
	{code: "sv", name: "Swedish", alpha3: "swe", site: "swe", aliases: []string{"svenska"}},
	{code: "no", name: "Norwegian", alpha3: "nor", site: "nor", aliases: []string{"nb", "nob", "norsk", "bokmål", "bokmal"}},
	{code: "da", name: "Danish", alpha3: "dan", site: "dan", aliases: []string{"dansk"}},
	{code: "fi", name: "Finnish", alpha3: "fin", site: "fin", aliases: []string{"suomi"}},
	{code: "is", name: "Icelandic", alpha3: "isl", site: "ice", aliases: []string{"ice", "íslenska", "islenska"}},
	{code: "et", name: "Estonian", alpha3: "est", site: "est", aliases: []string{"eesti"}},
	{code: "lv", name: "Latvian", alpha3: "lav", site: "lav", aliases: []string{"latviešu", "latviesu"}},
	{code: "lt", name: "Lithuanian", alpha3: "lit", site: "lit", aliases: []string{"lietuvių", "lietuviu"}},
	{code: "sq", name: "Albanian", alpha3: "sqi", site: "alb", aliases: []string{"alb", "shqip"}},
	{code: "ca", name: "Catalan", alpha3: "cat", site: "cat", aliases: []string{"català", "catala"}},
	{code: "eu", name: "Basque", alpha3: "eus", site: "baq", aliases: []string{"baq", "euskara"}},
	{code: "gl", name: "Galician", alpha3: "glg", site: "glg", aliases: []string{"galego"}},
	{code: "ar", name: "Arabic", alpha3: "ara", site: "ara", aliases: []string{"العربية", "arabi"}},
	{code: "he", name: "Hebrew", alpha3: "heb", site: "heb", aliases: []string{"iw", "עברית", "ivrit"}},
	{code: "fa", name: "Persian", alpha3: "fas", site: "per", aliases: []string{"per", "farsi", "فارسی"}},
	{code: "ur", name: "Urdu", alpha3: "urd", site: "urd", aliases: []string{"اردو"}},
	{code: "hi", name: "Hindi", alpha3: "hin", site: "hin", aliases: []string{"हिन्दी", "hindī"}},
	{code: "bn", name: "Bengali", alpha3: "ben", site: "ben", aliases: []string{"bangla", "বাংলা"}},
	{code: "ta", name: "Tamil", alpha3: "tam", site: "tam", aliases: []string{"தமிழ்"}},
	{code: "te", name: "Telugu", alpha3: "tel", site: "tel", aliases: []string{"తెలుగు"}},
	{code: "ml", name: "Malayalam", alpha3: "mal", site: "mal", aliases: []string{"മലയാളം"}},
	{code: "si", name: "Sinhala", alpha3: "sin", site: "sin", aliases: []string{"sinhalese"}},
	{code: "th", name: "Thai", alpha3: "tha", site: "tha", aliases: []string{"ไทย"}},
	{code: "vi", name: "Vietnamese", alpha3: "vie", site: "vie", aliases: []string{"tiếng việt", "tieng viet"}},
	{code: "id", name: "Indonesian", alpha3: "ind", site: "ind", aliases: []string{"bahasa indonesia"}},
	{code: "ms", name: "Malay", alpha3: "msa", site: "may", aliases: []string{"may", "bahasa melayu"}},
	{code: "tl", name: "Tagalog", alpha3: "tgl", site: "tgl", aliases: []string{"filipino", "fil"}},
	{code: "zh", name: "Chinese (Simplified)", alpha3: "zho", site: "chi", aliases: []string{"chi", "chinese", "zh-cn", "zh-hans", "简体中文", "chinese simplified"}},
	{code: "zh-TW", name: "Chinese (Traditional)", alpha3: "zht", site: "zht", aliases: []string{"zt", "zh-tw", "zh-hant", "繁體中文", "chinese traditional"}},
	{code: "ze", name: "Chinese (Bilingual)", alpha3: "zhe", site: "zhe", aliases: []string{"zhe", "chinese bilingual", "chinese english", "中英双语"}},
	{code: "ja", name: "Japanese", alpha3: "jpn", site: "jpn", aliases: []string{"日本語", "nihongo"}},
	{code: "ko", name: "Korean", alpha3: "kor", site: "kor", aliases: []string{"한국어", "hangugeo"}},
	{code: "ka", name: "Georgian", alpha3: "kat", site: "geo", aliases: []string{"geo", "ქართული"}},
	{code: "hy", name: "Armenian", alpha3: "hye", site: "arm", aliases: []string{"arm", "հայերեն"}},
	{code: "az", name: "Azerbaijani", alpha3: "aze", site: "aze", aliases: []string{"azərbaycan", "azerbaycan"}},
	{code: "kk", name: "Kazakh", alpha3: "kaz", site: "kaz", aliases: []string{"қазақ", "qazaq"}},
	{code: "mn", name: "Mongolian", alpha3: "mon", site: "mon", aliases: []string{"монгол"}},
	{code: "km", name: "Khmer", alpha3: "khm", site: "khm", aliases: []string{"cambodian"}},
	{code: "eo", name: "Esperanto", alpha3: "epo", site: "epo", aliases: nil},
	{code: "br", name: "Breton", alpha3: "bre", site: "bre", aliases: []string{"brezhoneg"}},
	{code: "af", name: "Afrikaans", alpha3: "afr", site: "afr", aliases: nil},
	{code: "sw", name: "Swahili", alpha3: "swa", site: "swa", aliases: []string{"kiswahili"}},
}
