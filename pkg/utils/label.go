package utils

// Label 记录候选在链路上经过的节点，例如 recall_source=pool@recall。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

func NewLabel(value, source string) Label {
	return Label{Value: value, Source: source}
}

// MergeLabel 合并同名 Label：Value 用 "|" 连接，Source 用 "," 连接，空值不参与。
func MergeLabel(a, b Label) Label {
	if a.Value == "" {
		return b
	}
	if b.Value == "" {
		return a
	}
	return Label{
		Value:  a.Value + "|" + b.Value,
		Source: join(a.Source, b.Source, ","),
	}
}

func join(a, b, sep string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + sep + b
}
