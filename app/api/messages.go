package api

// User-facing error messages.
const (
	msgBadRequest       = "درخواست نامعتبر است"
	msgUnauthorized     = "لطفا وارد حساب کاربری خود شوید"
	msgForbidden        = "شما دسترسی لازم برای این عملیات را ندارید"
	msgNotFound         = "مورد درخواستی یافت نشد"
	msgConflict         = "این مورد قبلا ثبت شده است"
	msgInUse            = "این مورد در حال استفاده است و قابل حذف نیست"
	msgTooManyRequests  = "تعداد تلاش‌های ناموفق بیش از حد مجاز است. لطفا بعدا تلاش کنید"
	msgInternal         = "خطای داخلی سرور"
	msgInvalidLogin     = "ایمیل/شماره موبایل یا رمز عبور اشتباه است"
	msgInvalidPhone     = "شماره موبایل نامعتبر است"
	msgOTPTooSoon       = "لطفا پیش از درخواست مجدد کد کمی صبر کنید"
	msgOTPInvalid       = "کد تایید نادرست است"
	msgOTPExpired       = "کد تایید منقضی شده است"
	msgOTPTooMany       = "تعداد تلاش‌ها برای این کد به پایان رسیده است. کد جدید درخواست کنید"
	msgTitleRequired    = "عنوان الزامی است"
	msgInvalidStatus    = "وضعیت نامعتبر است"
	msgPasswordTooShort = "رمز عبور باید حداقل ۸ کاراکتر باشد"
	msgFileRequired     = "فایلی ارسال نشده است"
	msgFileTooLarge     = "حجم فایل بیش از حد مجاز است"
	msgFileType         = "نوع فایل مجاز نیست"
	msgInvalidFilters   = "فیلترهای منبع نامعتبر است"
	msgRSSRunning       = "پردازش خوراک‌ها در حال اجراست"
	msgNoRows           = "هیچ قیمتی در صفحه منبع یافت نشد"
	msgQueueFull        = "صف پردازش پر است. لطفا بعدا تلاش کنید"
	msgLoggedOut        = "با موفقیت خارج شدید"
	msgOTPSent          = "کد تایید ارسال شد"
)
