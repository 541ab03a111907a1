package service

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

var shoppingListHeaders = []string{"原料", "单位", "数量", "单价", "金额"}

// ExportShoppingList 导出购物清单为 Excel。金额收敛到2位小数展示。
func (s *SummaryService) ExportShoppingList(ctx context.Context, planID string) (*excelize.File, string, error) {
	summary, err := s.PlanSummary(ctx, planID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "购物清单"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range shoppingListHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	costByKey := make(map[string]IngredientTotalLine, len(summary.IngredientTotals))
	for _, line := range summary.IngredientTotals {
		costByKey[line.IngredientID+"|"+line.Unit] = line
	}

	row := 2
	for _, line := range summary.ShoppingList {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), line.Name)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), line.Unit)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), line.Quantity)
		if cost, ok := costByKey[line.IngredientID+"|"+line.Unit]; ok {
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), cost.UnitCost.Round(2).InexactFloat64())
			f.SetCellValue(sheet, fmt.Sprintf("E%d", row), cost.TotalCost.Round(2).InexactFloat64())
		}
		row++
	}

	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	totalCell := fmt.Sprintf("E%d", row)
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "合计")
	f.SetCellValue(sheet, totalCell, summary.TotalCost.Round(2).InexactFloat64())
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), totalCell, summaryStyle)

	filename := fmt.Sprintf("shopping-list-%s.xlsx", planID)
	return f, filename, nil
}
