package tasks

import "github.com/qs3c/repoinsight/internal/model"

var depthCategories = map[model.Depth][]model.Category{
	model.DepthQuick: {
		model.CategoryArchitecture,
		model.CategorySecurity,
	},
	model.DepthStandard: {
		model.CategoryArchitecture,
		model.CategorySecurity,
		model.CategoryPerformance,
		model.CategoryMaintainability,
	},
	model.DepthDeep: model.Categories,
}

// SelectCategories 根据深度选择类别；显式类别列表优先，且始终按固定类别顺序返回
func SelectCategories(depth model.Depth, includeSecurity bool, explicit []model.Category) []model.Category {
	want := map[model.Category]bool{}
	if len(explicit) > 0 {
		for _, c := range explicit {
			want[c] = true
		}
	} else {
		cats, ok := depthCategories[depth]
		if !ok {
			cats = depthCategories[model.DepthStandard]
		}
		for _, c := range cats {
			want[c] = true
		}
		if !includeSecurity {
			delete(want, model.CategorySecurity)
		}
	}

	out := make([]model.Category, 0, len(want))
	for _, c := range model.Categories {
		if want[c] {
			out = append(out, c)
		}
	}
	return out
}
