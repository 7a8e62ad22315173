package docstore

import (
	"fmt"
	"strings"
)

// Path はコレクションのパスを表す。
// 奇数番目の要素がコレクション名、偶数番目の要素が親ドキュメントIDとなる。
// 例: Path{"customers", "<customerID>", "goals"}
type Path []string

// Collection はパス要素からPathを生成する。
func Collection(segments ...string) Path {
	return Path(segments)
}

// String はスラッシュ区切りのパス文字列を返す。
func (p Path) String() string {
	return strings.Join(p, "/")
}

// Kind はドキュメントIDを除いたコレクション種別を返す（例: "customers/goals"）。
// メトリクスのラベルなど、カーディナリティを抑えたい用途で使用する。
func (p Path) Kind() string {
	kinds := make([]string, 0, (len(p)+1)/2)
	for i := 0; i < len(p); i += 2 {
		kinds = append(kinds, p[i])
	}
	return strings.Join(kinds, "/")
}

// Doc は指定IDのドキュメントを親とするサブコレクションのパスを返す。
func (p Path) Doc(id string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, id)
}

// Validate はパスがコレクションを指しているかを検証する。
func (p Path) Validate() error {
	if len(p) == 0 || len(p)%2 == 0 {
		return fmt.Errorf("invalid collection path %q: must have an odd number of segments", p.String())
	}
	for _, s := range p {
		if s == "" || strings.Contains(s, "/") {
			return fmt.Errorf("invalid collection path %q: empty segment or slash", p.String())
		}
	}
	return nil
}

// validateDocPrefix は削除対象ツリーの起点となるドキュメントパスを検証する。
func validateDocPrefix(p Path) error {
	if len(p) == 0 || len(p)%2 != 0 {
		return fmt.Errorf("invalid document path %q: must have an even number of segments", p.String())
	}
	for _, s := range p {
		if s == "" || strings.Contains(s, "/") {
			return fmt.Errorf("invalid document path %q: empty segment or slash", p.String())
		}
	}
	return nil
}
