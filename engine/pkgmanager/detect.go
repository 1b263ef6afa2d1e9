package pkgmanager

import (
	"sort"
	"strings"

	"github.com/appforge/appforge/engine/validate"
)

// pythonImportToPackage maps import names to their PyPI package when the two
// differ.
var pythonImportToPackage = map[string]string{
	"cv2":       "opencv-python",
	"PIL":       "Pillow",
	"sklearn":   "scikit-learn",
	"yaml":      "pyyaml",
	"dotenv":    "python-dotenv",
	"dateutil":  "python-dateutil",
	"jwt":       "pyjwt",
	"bs4":       "beautifulsoup4",
	"psycopg2":  "psycopg2-binary",
	"discord":   "discord.py",
	"telegram":  "python-telegram-bot",
	"jose":      "python-jose",
	"multipart": "python-multipart",
	"magic":     "python-magic",
}

// pythonStdlib holds standard library modules that must never be installed.
var pythonStdlib = makeSet(
	"abc", "aifc", "argparse", "array", "ast", "asynchat", "asyncio", "asyncore",
	"atexit", "audioop", "base64", "bdb", "binascii", "bisect", "builtins",
	"bz2", "calendar", "cgi", "cgitb", "chunk", "cmath", "cmd", "code",
	"codecs", "codeop", "collections", "colorsys", "compileall", "concurrent",
	"configparser", "contextlib", "contextvars", "copy", "copyreg", "csv",
	"ctypes", "curses", "dataclasses", "datetime", "dbm", "decimal", "difflib",
	"dis", "doctest", "email", "encodings", "enum", "errno", "faulthandler",
	"fcntl", "filecmp", "fileinput", "fnmatch", "fractions", "ftplib",
	"functools", "gc", "getopt", "getpass", "gettext", "glob", "graphlib",
	"grp", "gzip", "hashlib", "heapq", "hmac", "html", "http", "imaplib",
	"importlib", "inspect", "io", "ipaddress", "itertools", "json", "keyword",
	"linecache", "locale", "logging", "lzma", "mailbox", "marshal", "math",
	"mimetypes", "mmap", "modulefinder", "multiprocessing", "netrc", "numbers",
	"operator", "optparse", "os", "pathlib", "pdb", "pickle", "pickletools",
	"pkgutil", "platform", "plistlib", "poplib", "posix", "posixpath",
	"pprint", "profile", "pstats", "pty", "pwd", "py_compile", "pyclbr",
	"pydoc", "queue", "quopri", "random", "re", "readline", "reprlib",
	"resource", "rlcompleter", "runpy", "sched", "secrets", "select",
	"selectors", "shelve", "shlex", "shutil", "signal", "site", "smtplib",
	"socket", "socketserver", "sqlite3", "ssl", "stat", "statistics",
	"string", "stringprep", "struct", "subprocess", "symtable", "sys",
	"sysconfig", "syslog", "tabnanny", "tarfile", "tempfile", "termios",
	"test", "textwrap", "threading", "time", "timeit", "tkinter", "token",
	"tokenize", "tomllib", "trace", "traceback", "tracemalloc", "tty",
	"turtle", "types", "typing", "unicodedata", "unittest", "urllib", "uu",
	"uuid", "venv", "warnings", "wave", "weakref", "webbrowser", "wsgiref",
	"xml", "xmlrpc", "zipapp", "zipfile", "zipimport", "zlib", "zoneinfo",
)

// pythonFramework lists modules the generated backend already provides.
var pythonFramework = makeSet(
	"app", "databutton", "fastapi", "pydantic", "asyncpg", "uvicorn", "starlette",
)

// nodeBuiltins lists Node.js built-in modules.
var nodeBuiltins = makeSet(
	"assert", "buffer", "child_process", "cluster", "crypto", "dgram", "dns",
	"domain", "events", "fs", "http", "https", "net", "os", "path",
	"punycode", "querystring", "readline", "repl", "stream", "string_decoder",
	"timers", "tls", "tty", "url", "util", "v8", "vm", "zlib",
)

// nodeFramework lists specifiers the preview template resolves internally.
var nodeFramework = makeSet(
	"react", "react-dom", "react-router-dom",
	"app", "components", "utils", "types",
)

func makeSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Detection is the set of packages a file (or file group) requires, split by
// ecosystem. Lists are sorted and duplicate-free.
type Detection struct {
	Python []string `json:"python"`
	NPM    []string `json:"npm"`
}

// FileInput pairs a workspace-relative path with its content.
type FileInput struct {
	Path    string
	Content string
}

// DetectPython returns the PyPI packages a python source needs: imports are
// extracted by the validator, standard library and framework modules drop
// out, and the remainder maps through the import-to-package table.
func DetectPython(content string) []string {
	imports := validate.Python(content).Imports
	seen := make(map[string]struct{})
	packages := make([]string, 0, len(imports))
	for _, name := range imports {
		if _, ok := pythonStdlib[name]; ok {
			continue
		}
		if _, ok := pythonFramework[name]; ok {
			continue
		}
		pkg := name
		if mapped, ok := pythonImportToPackage[name]; ok {
			pkg = mapped
		}
		if _, dup := seen[pkg]; dup {
			continue
		}
		seen[pkg] = struct{}{}
		packages = append(packages, pkg)
	}
	sort.Strings(packages)
	return packages
}

// DetectNode returns the npm packages a typescript source needs. Relative
// specifiers never reach here (the validator drops them); specifiers reduce
// to their package name, then built-ins, template-internal modules and "@/"
// alias imports are filtered.
func DetectNode(content string) []string {
	imports := validate.TypeScript(content).Imports
	seen := make(map[string]struct{})
	packages := make([]string, 0, len(imports))
	for _, specifier := range imports {
		if strings.HasPrefix(specifier, "@/") {
			continue
		}
		pkg := validate.PackageForSpecifier(specifier)
		if _, ok := nodeBuiltins[pkg]; ok {
			continue
		}
		if _, ok := nodeFramework[pkg]; ok {
			continue
		}
		if _, dup := seen[pkg]; dup {
			continue
		}
		seen[pkg] = struct{}{}
		packages = append(packages, pkg)
	}
	sort.Strings(packages)
	return packages
}

// DetectFromFiles aggregates detection over a set of generated files, routed
// by file extension.
func DetectFromFiles(files []FileInput) *Detection {
	pySeen := make(map[string]struct{})
	npmSeen := make(map[string]struct{})
	for _, file := range files {
		switch {
		case strings.HasSuffix(file.Path, ".py"):
			for _, pkg := range DetectPython(file.Content) {
				pySeen[pkg] = struct{}{}
			}
		case strings.HasSuffix(file.Path, ".ts"), strings.HasSuffix(file.Path, ".tsx"),
			strings.HasSuffix(file.Path, ".js"), strings.HasSuffix(file.Path, ".jsx"):
			for _, pkg := range DetectNode(file.Content) {
				npmSeen[pkg] = struct{}{}
			}
		}
	}
	return &Detection{
		Python: sortedKeys(pySeen),
		NPM:    sortedKeys(npmSeen),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
